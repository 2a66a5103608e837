package spf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_IncludeIPAll(t *testing.T) {
	parts := Parse([]byte("include:_spf.example ip4:192.0.2.0/24 -all"))
	require.Len(t, parts, 3)

	assert.Equal(t, KindDirective, parts[0].Kind)
	assert.Equal(t, MechInclude, parts[0].Mechanism.Kind)
	assert.Equal(t, "_spf.example", parts[0].Mechanism.Domain)
	assert.Equal(t, Pass, parts[0].Qualifier)

	assert.Equal(t, MechIP, parts[1].Mechanism.Kind)
	assert.Equal(t, "192.0.2.0/24", parts[1].Mechanism.Network)

	assert.Equal(t, Fail, parts[2].Qualifier)
	assert.Equal(t, MechAll, parts[2].Mechanism.Kind)
}

func TestParse_BareMechanismsAndModifiers(t *testing.T) {
	parts := Parse([]byte("mx ip4:87.139.193.6 ip4:212.227.181.119 ~all redirect=_spf.example exp=why.example foo=bar"))
	require.Len(t, parts, 7)
	assert.Equal(t, MechMX, parts[0].Mechanism.Kind)
	assert.Equal(t, "", parts[0].Mechanism.Domain)
	assert.Equal(t, SoftFail, parts[3].Qualifier)
	assert.Equal(t, KindRedirect, parts[4].Kind)
	assert.Equal(t, "_spf.example", parts[4].Domain)
	assert.Equal(t, KindExplanation, parts[5].Kind)
	assert.Equal(t, KindUnknown, parts[6].Kind)
	assert.Equal(t, "foo", parts[6].Name)
	assert.Equal(t, "bar", parts[6].Value)
}

func TestParse_DropsMalformedParts(t *testing.T) {
	parts := Parse([]byte("include:_spf.example %zbad -all"))
	require.Len(t, parts, 2)
	assert.Equal(t, MechInclude, parts[0].Mechanism.Kind)
	assert.Equal(t, MechAll, parts[1].Mechanism.Kind)
}

func TestMacroExpansion(t *testing.T) {
	domain, ok := parseDomainSpec([]byte("a%%b%_c%-d"), false)
	require.True(t, ok)
	assert.Equal(t, "a%b c%20d", domain)

	_, ok = parseDomainSpec([]byte("a%zb"), false)
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"include:_spf.example ip4:192.0.2.0/24 -all",
		"a:mail.example/24//64 mx -all",
		"ptr ~all",
		"redirect=_spf.example",
	}
	for _, in := range inputs {
		parts := Parse([]byte(in))
		out := Encode(parts)
		reparsed := Parse([]byte(out))
		require.Equal(t, len(parts), len(reparsed), "round trip of %q changed part count", in)
		for i := range parts {
			assert.Equal(t, parts[i].Kind, reparsed[i].Kind)
			assert.Equal(t, parts[i].Mechanism.Kind, reparsed[i].Mechanism.Kind)
			assert.Equal(t, parts[i].Mechanism.Domain, reparsed[i].Mechanism.Domain)
		}
	}
}

func TestClassifyRecord_GlobalsignShadowing(t *testing.T) {
	// A GlobalSign-SMIME TXT value is classified as the bare
	// HasGlobalsignAccount hint because that rule is checked first.
	c := ClassifyRecord([]byte("globalsign-smime=abc123"))
	require.Equal(t, RecordServiceHint, c.Kind)
	assert.Equal(t, HintGlobalsignAccount, c.Hint)
}

func TestClassifyRecord_SPF(t *testing.T) {
	c := ClassifyRecord([]byte("v=spf1 include:_spf.example ip4:192.0.2.0/24 -all"))
	require.Equal(t, RecordSPF, c.Kind)
	require.Len(t, c.SPF, 3)
}

func TestClassifyDomainRecords_AggregatesHints(t *testing.T) {
	hints, spfResults := ClassifyDomainRecords([][]byte{
		[]byte("google-site-verification=abc"),
		[]byte("apple-domain-verification=xyz"),
		[]byte("v=spf1 -all"),
	})
	require.Len(t, hints, 2)
	require.Len(t, spfResults, 1)
	assert.Equal(t, HintGoogleAccount, hints[0].Hint)
	assert.Equal(t, HintAppleAccount, hints[1].Hint)
}
