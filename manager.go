package hostcert

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Manager drives the per-hostname state machine across the cache, the SAN
// builder, the CA client and the certificate verifier:
//
//	Absent -> (REQUEST) -> Pending -> (successful GET) -> finalized
//	                       Pending -> (DROP)           -> dropped
//
// A repeated REQUEST on a Pending host is a no-op. Processing is strictly
// sequential; one network call in flight at a time.
type Manager struct {
	cfg      *Config
	cache    *Cache
	gen      KeyAndCSRGenerator
	ca       CAClient
	verifier CertVerifier
	journal  Recorder // optional, may be nil
	logger   *slog.Logger
}

// NewManager wires the lifecycle manager. journal may be nil; everything
// else is required.
func NewManager(cfg *Config, cache *Cache, gen KeyAndCSRGenerator, ca CAClient, verifier CertVerifier, journal Recorder, logger *slog.Logger) *Manager {
	if cfg == nil || cache == nil || gen == nil || ca == nil || verifier == nil || logger == nil {
		panic("NewManager: received nil collaborator")
	}
	return &Manager{
		cfg:      cfg,
		cache:    cache,
		gen:      gen,
		ca:       ca,
		verifier: verifier,
		journal:  journal,
		logger:   logger.With("component", "lifecycle"),
	}
}

// RequestHost generates and submits a signing request for hostname. If a
// request is already pending the call is an idempotent no-op: no key is
// generated and nothing is submitted. Generation and submission failures
// are fatal for the whole run; on submission failure the just-written
// artifacts are rolled back so no orphaned Pending entry remains.
func (m *Manager) RequestHost(ctx context.Context, hostname string, perLineAliases []string) error {
	canonical := Canonicalize(hostname, m.cfg.DomainSuffix)

	if m.cache.HasPending(canonical) {
		m.logger.Info("request already pending, skipping", "hostname", canonical)
		return nil
	}

	sans := BuildSANList(hostname, m.cfg.DomainSuffix, m.cfg.GlobalAliases, perLineAliases)

	keyPEM, csrPEM, err := m.gen.Generate(canonical, sans)
	if err != nil {
		m.logger.Error("key and request generation failed", "hostname", canonical, "error", err)
		return err
	}

	if _, err := m.cache.Store(canonical, keyPEM, csrPEM); err != nil {
		m.logger.Error("caching artifacts failed", "hostname", canonical, "error", err)
		return err
	}

	if err := m.ca.SubmitRequest(ctx, csrPEM, m.cfg.submitFields(sans)); err != nil {
		m.logger.Error("submission failed, rolling back cached artifacts", "hostname", canonical, "error", err)
		if rerr := m.cache.Remove(canonical); rerr != nil && !errors.Is(rerr, ErrNotPending) {
			m.logger.Error("rollback failed, cache may hold an orphaned entry", "hostname", canonical, "error", rerr)
		}
		return err
	}

	m.record(canonical, StatePending, sans)
	m.logger.Info("request submitted", "hostname", canonical, "san", sans)
	return nil
}

// FetchHost attempts to retrieve the certificate for hostname. A body that
// fails certificate parsing is the CA's way of saying "not issued yet": the
// candidate is discarded, the entry stays Pending and nil is returned so
// the batch continues. Only transport and filesystem failures are errors.
func (m *Manager) FetchHost(ctx context.Context, hostname string) error {
	return m.fetchCanonical(ctx, Canonicalize(hostname, m.cfg.DomainSuffix))
}

func (m *Manager) fetchCanonical(ctx context.Context, canonical string) error {
	body, err := m.ca.FetchCertificate(ctx, canonical)
	if err != nil {
		m.logger.Error("certificate retrieval failed", "hostname", canonical, "error", err)
		return err
	}

	if _, err := m.cache.AttachCertificate(canonical, body); err != nil {
		m.logger.Error("caching candidate certificate failed", "hostname", canonical, "error", err)
		return err
	}

	if _, err := m.verifier.Parse(body); err != nil {
		m.logger.Info("certificate not ready", "hostname", canonical, "reason", err)
		if derr := m.cache.DiscardCertificate(canonical); derr != nil {
			m.logger.Error("discarding candidate failed", "hostname", canonical, "error", derr)
			return derr
		}
		return nil
	}

	if err := m.cache.Finalize(canonical, m.cfg.OutputDir); err != nil {
		m.logger.Error("finalizing certificate failed", "hostname", canonical, "error", err)
		return err
	}

	m.record(canonical, StateFetched, nil)
	m.logger.Info("certificate retrieved", "hostname", canonical, "output_dir", m.cfg.OutputDir)
	return nil
}

// DropHost removes the cached artifacts for hostname. Absence is a warning,
// not a failure.
func (m *Manager) DropHost(hostname string) error {
	canonical := Canonicalize(hostname, m.cfg.DomainSuffix)

	err := m.cache.Remove(canonical)
	switch {
	case err == nil:
		m.record(canonical, StateDropped, nil)
		m.logger.Info("request dropped", "hostname", canonical)
		return nil
	case errors.Is(err, ErrNotPending):
		m.logger.Warn("nothing cached for hostname", "hostname", canonical)
		return nil
	default:
		m.logger.Error("dropping request failed", "hostname", canonical, "error", err)
		return err
	}
}

// ListPending returns the hostnames currently awaiting retrieval.
func (m *Manager) ListPending() ([]string, error) {
	return m.cache.ListPending()
}

// FetchAll attempts retrieval for every pending hostname. Per-host failures
// are logged and do not abort the sweep.
func (m *Manager) FetchAll(ctx context.Context) error {
	hostnames, err := m.cache.ListPending()
	if err != nil {
		return err
	}
	m.logger.Info("starting retrieval sweep", "pending", len(hostnames))
	for _, canonical := range hostnames {
		if err := m.fetchCanonical(ctx, canonical); err != nil {
			m.logger.Warn("retrieval failed, continuing with next host", "hostname", canonical, "error", err)
		}
	}
	return nil
}

// Purge deletes the entire cache, trust anchor included.
func (m *Manager) Purge() error {
	if err := m.cache.Purge(); err != nil {
		m.logger.Error("purging cache failed", "error", err)
		return err
	}
	m.logger.Info("cache purged", "dir", m.cache.Dir())
	return nil
}

// record writes an audit event when a journal is configured. The journal
// never influences lifecycle state, so failures only warn.
func (m *Manager) record(hostname string, state State, sans []string) {
	if m.journal == nil {
		return
	}
	event := Event{
		Hostname: hostname,
		State:    state,
		SANList:  sans,
		At:       time.Now().UTC(),
	}
	if err := m.journal.AddEvent(event); err != nil {
		m.logger.Warn("journal write failed", "hostname", hostname, "state", state, "error", err)
	}
}
