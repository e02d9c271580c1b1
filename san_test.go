package hostcert_test

import (
	"testing"

	"github.com/hostcert-tools/hostcert"
	"github.com/stretchr/testify/assert"
)

func TestBuildSANList(t *testing.T) {
	tests := []struct {
		name           string
		primary        string
		domainSuffix   string
		globalAliases  []string
		perLineAliases []string
		want           []string
	}{
		{
			name:           "suffix applied to every name in order",
			primary:        "node1",
			domainSuffix:   "example.org",
			globalAliases:  []string{"alt1"},
			perLineAliases: []string{"alt2"},
			want:           []string{"node1.example.org", "alt1.example.org", "alt2.example.org"},
		},
		{
			name:           "no suffix leaves names untouched",
			primary:        "node1.example.org",
			globalAliases:  []string{"www.example.org"},
			perLineAliases: []string{"mail.example.org"},
			want:           []string{"node1.example.org", "www.example.org", "mail.example.org"},
		},
		{
			name:         "primary only",
			primary:      "node1",
			domainSuffix: "example.org",
			want:         []string{"node1.example.org"},
		},
		{
			name:           "duplicates are passed through",
			primary:        "node1",
			domainSuffix:   "example.org",
			globalAliases:  []string{"node1"},
			perLineAliases: []string{"node1"},
			want:           []string{"node1.example.org", "node1.example.org", "node1.example.org"},
		},
		{
			name:           "global aliases precede per-line aliases",
			primary:        "node1",
			globalAliases:  []string{"g1", "g2"},
			perLineAliases: []string{"p1", "p2"},
			want:           []string{"node1", "g1", "g2", "p1", "p2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hostcert.BuildSANList(tt.primary, tt.domainSuffix, tt.globalAliases, tt.perLineAliases)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "node1.example.org", hostcert.Canonicalize("node1", "example.org"))
	assert.Equal(t, "node1", hostcert.Canonicalize("node1", ""))
}
