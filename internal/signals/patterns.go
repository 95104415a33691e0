package signals

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"threatlens/internal/domain"
)

const RulesVersion = "rules-2026.10"

// Rule categories with aggregator meaning. Other categories only add details.
const (
	CategoryMalware     = "malware"
	CategoryEncryption  = "encryption"
	CategoryObfuscation = "obfuscation"
)

const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Rule is one content pattern. Pattern is a Go regexp.
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Category    string `yaml:"category" json:"category"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Description string `yaml:"description" json:"description"`
}

// RuleFile is the on-disk YAML layout:
//
//	rules:
//	  - name: Miner.Stratum
//	    category: malware
//	    pattern: '(?i)stratum\+tcp://'
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// indicator classes used to grade severity of a rule hit
var indicatorClasses = map[string]*regexp.Regexp{
	"suspicious_call": regexp.MustCompile(`(?i)\b(eval|exec|system|shell_exec|popen|Runtime\.getRuntime|ProcessBuilder|DexClassLoader|loadLibrary|CreateRemoteThread|VirtualAlloc|WriteProcessMemory)\s*\(`),
	"bad_network":     regexp.MustCompile(`(?i)(\b\d{1,3}(\.\d{1,3}){3}:\d{2,5}\b|\.onion\b|pastebin\.com|ngrok\.io|stratum\+tcp://)`),
	"cipher":          regexp.MustCompile(`(?i)\b(AES|DES|3DES|RC4|Blowfish|ChaCha20|RSA)\b`),
	"exploit":         regexp.MustCompile(`(?i)\b(exploit|shellcode|keylogger|backdoor|rootkit|reverse[ _-]?shell|privilege[ _-]escalation)\b`),
}

// DefaultRules is the built-in rule set used when no rule file is configured.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "Trojan.Dropper", Category: CategoryMalware, Pattern: `(?i)(DexClassLoader|loadLibrary|CreateRemoteThread|VirtualAlloc|WriteProcessMemory)`, Description: "Dynamic code loading or process injection API"},
		{Name: "Exploit.Keywords", Category: CategoryMalware, Pattern: `(?i)\b(exploit|shellcode|keylogger|backdoor|rootkit|reverse[ _-]?shell)\b`, Description: "Exploit or implant terminology"},
		{Name: "Miner.Stratum", Category: CategoryMalware, Pattern: `(?i)(stratum\+tcp://|xmrig|coinhive|cryptonight)`, Description: "Cryptocurrency miner indicator"},
		{Name: "Crypto.CipherUsage", Category: CategoryEncryption, Pattern: `(?i)\b(AES|DES|3DES|RC4|Blowfish|ChaCha20)\b`, Description: "Embedded cipher usage"},
		{Name: "Obfuscation.EncodedPayload", Category: CategoryObfuscation, Pattern: `(?i)(base64_decode|atob\s*\(|fromCharCode|(\\x[0-9a-f]{2}){8,}|[A-Za-z0-9+/]{120,}={0,2})`, Description: "Encoded or packed payload"},
		{Name: "Network.SuspiciousHost", Category: "network", Pattern: `(?i)(\.onion\b|pastebin\.com|ngrok\.io|\b\d{1,3}(\.\d{1,3}){3}:\d{2,5}\b)`, Description: "Known-bad network indicator"},
		{Name: "Phishing.CredentialLure", Category: "phishing", Pattern: `(?i)(verify your account|password[ _-]?reset|account[ _-]?suspended|login\.php)`, Description: "Credential harvesting lure"},
	}
}

// LoadRules reads a YAML rule file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s has no rules", path)
	}
	return rf.Rules, nil
}

// Match is one rule hit.
type Match struct {
	Rule        string   `json:"rule"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Classes     []string `json:"indicator_classes,omitempty"`
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// PatternMatcher runs literal regex rules over subject content. It is a
// substring scan, not static or dynamic analysis.
type PatternMatcher struct {
	rules []compiledRule
}

func NewPatternMatcher(rules []Rule) (*PatternMatcher, error) {
	pm := &PatternMatcher{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		pm.rules = append(pm.rules, compiledRule{Rule: r, re: re})
	}
	return pm, nil
}

func (p *PatternMatcher) Name() string { return "patterns" }

// Scan returns one Match per matching rule, in rule order.
func (p *PatternMatcher) Scan(content []byte) []Match {
	var classes []string
	for _, name := range []string{"suspicious_call", "bad_network", "cipher", "exploit"} {
		if indicatorClasses[name].Match(content) {
			classes = append(classes, name)
		}
	}
	severity := SeverityMedium
	if len(classes) > 2 {
		severity = SeverityHigh
	}

	var matches []Match
	for _, r := range p.rules {
		if !r.re.Match(content) {
			continue
		}
		matches = append(matches, Match{
			Rule:        r.Name,
			Category:    r.Category,
			Description: r.Description,
			Severity:    severity,
			Classes:     classes,
		})
	}
	return matches
}

func (p *PatternMatcher) Produce(ctx context.Context, s Subject) (Signal, error) {
	matches := p.Scan(s.Content)
	sig := Signal{Producer: p.Name(), Consulted: len(p.rules), Raw: matches}
	for _, m := range matches {
		switch m.Category {
		case CategoryMalware:
			sig.Factors.Malicious = true
		case CategoryEncryption:
			sig.Factors.HasEncryption = true
		case CategoryObfuscation:
			sig.Factors.HasObfuscation = true
		}
		sig.Details = append(sig.Details, domain.DetectionDetail{
			Source:       m.Rule,
			Category:     m.Category,
			Result:       fmt.Sprintf("%s (%s severity)", m.Description, m.Severity),
			Method:       "pattern-match",
			EngineUpdate: RulesVersion,
		})
	}
	return sig, nil
}
