package spf

import "regexp"

// Hint enumerates the known-service families a TXT record can hint at.
type Hint string

const (
	HintGoogleAccount      Hint = "HasGoogleAccount"
	HintGlobalsignAccount  Hint = "HasGlobalsignAccount"
	HintGlobalsignSMime    Hint = "HasGlobalsignSMime"
	HintDocusignAccount    Hint = "HasDocusignAccount"
	HintAppleAccount       Hint = "HasAppleAccount"
	HintFacebookAccount    Hint = "HasFacebookAccount"
	HintHubspotAccount     Hint = "HasHubspotAccount"
	HintMSDynamics365      Hint = "HasMsDynamics365"
	HintStripeAccount      Hint = "HasStripeAccount"
	HintOneTrustSSO        Hint = "HasOneTrustSso"
	HintBrevoAccount       Hint = "HasBrevoAccount"
	HintAtlassianAccounts  Hint = "OwnsAtlassianAccounts"
	HintZoomAccounts       Hint = "OwnsZoomAccounts"
	HintProtonMail         Hint = "EmailProtonMail"
)

// hintRule pairs a hint with its anchored, case-insensitive matcher.
type hintRule struct {
	hint Hint
	re   *regexp.Regexp
}

// rules is order-sensitive: HasGlobalsignAccount's bare "globalsign"
// pattern is checked before the more specific HasGlobalsignSMime
// "globalsign-smime" pattern, so a GlobalSign-SMIME TXT value is
// classified as HasGlobalsignAccount. Downstream consumers depend on the
// established classification, so the ordering stays as is.
var rules = []hintRule{
	{HintGoogleAccount, regexp.MustCompile(`(?i)^GOOGLE-SITE-VERIFICATION=`)},
	{HintGlobalsignAccount, regexp.MustCompile(`(?i)globalsign`)},
	{HintGlobalsignSMime, regexp.MustCompile(`(?i)globalsign-smime`)},
	{HintDocusignAccount, regexp.MustCompile(`(?i)^docusign`)},
	{HintAppleAccount, regexp.MustCompile(`(?i)^apple-domain-verification=`)},
	{HintFacebookAccount, regexp.MustCompile(`(?i)^facebook-domain-verification=`)},
	{HintHubspotAccount, regexp.MustCompile(`(?i)^hubspot-developer-verification=`)},
	{HintMSDynamics365, regexp.MustCompile(`(?i)^d365mktkey=`)},
	{HintStripeAccount, regexp.MustCompile(`(?i)^stripe-verification=`)},
	{HintOneTrustSSO, regexp.MustCompile(`(?i)^onetrust-domain-verification=`)},
	{HintBrevoAccount, regexp.MustCompile(`(?i)^brevo-code:`)},
	{HintAtlassianAccounts, regexp.MustCompile(`(?i)^atlassian-domain-verification=`)},
	{HintZoomAccounts, regexp.MustCompile(`(?i)^ZOOM_verify_`)},
	{HintProtonMail, regexp.MustCompile(`(?i)^protonmail-verification=`)},
}

// RecordKind distinguishes the two shapes ClassifyRecord can return.
type RecordKind string

const (
	RecordSPF          RecordKind = "Spf"
	RecordServiceHint  RecordKind = "ServiceHint"
	RecordUnclassified RecordKind = "Unclassified"
)

// ClassifiedRecord is one TXT record's classification result.
type ClassifiedRecord struct {
	Kind  RecordKind
	SPF   []Part // set when Kind == RecordSPF
	Hint  Hint   // set when Kind == RecordServiceHint
	Rule  string // the raw TXT value that matched, set when Kind == RecordServiceHint
}

// ClassifyRecord inspects one raw TXT record: a "v=spf1" prefix is parsed
// as SPF; otherwise the record is matched against the ordered hint rules,
// first match wins per record.
func ClassifyRecord(record []byte) ClassifiedRecord {
	if len(record) >= len("v=spf1") && string(record[:len("v=spf1")]) == "v=spf1" {
		return ClassifiedRecord{Kind: RecordSPF, SPF: Parse(record[len("v=spf1"):])}
	}
	for _, rule := range rules {
		if rule.re.Match(record) {
			return ClassifiedRecord{Kind: RecordServiceHint, Hint: rule.hint, Rule: string(record)}
		}
	}
	return ClassifiedRecord{Kind: RecordUnclassified}
}

// ServiceHintMatch is one (raw rule text, matched hint) pair.
type ServiceHintMatch struct {
	Rule string
	Hint Hint
}

// ClassifyDomainRecords processes every TXT record found for one domain:
// service hints across all records accumulate into a single combined
// result, while SPF parses are returned per-record as they're found.
func ClassifyDomainRecords(records [][]byte) (hints []ServiceHintMatch, spfResults [][]Part) {
	for _, record := range records {
		classified := ClassifyRecord(record)
		switch classified.Kind {
		case RecordServiceHint:
			hints = append(hints, ServiceHintMatch{Rule: classified.Rule, Hint: classified.Hint})
		case RecordSPF:
			spfResults = append(spfResults, classified.SPF)
		}
	}
	return hints, spfResults
}
