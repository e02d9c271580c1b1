package hostcert

// Canonicalize applies the configured domain suffix to a bare name. With no
// suffix configured the name is already canonical.
func Canonicalize(name, domainSuffix string) string {
	if domainSuffix == "" {
		return name
	}
	return name + "." + domainSuffix
}

// BuildSANList composes the ordered subject-alternative-name list for a
// host: primary first, then the global aliases in configured order, then the
// per-line aliases in input order. The domain suffix, when configured, is
// applied to every name. Duplicates are passed through untouched; the CA
// sees exactly what the operator asked for.
func BuildSANList(primary, domainSuffix string, globalAliases, perLineAliases []string) []string {
	names := make([]string, 0, 1+len(globalAliases)+len(perLineAliases))
	names = append(names, Canonicalize(primary, domainSuffix))
	for _, alias := range globalAliases {
		names = append(names, Canonicalize(alias, domainSuffix))
	}
	for _, alias := range perLineAliases {
		names = append(names, Canonicalize(alias, domainSuffix))
	}
	return names
}
