package models

// BankSignature describes how a bank identifies itself in its statements.
type BankSignature struct {
	Name           string   `yaml:"name" json:"name"`
	Keywords       []string `yaml:"keywords" json:"keywords"`
	HeaderPatterns []string `yaml:"header_patterns" json:"headerPatterns"`
}

// MaxTheoreticalScore is the score a statement would get if every keyword appeared in
// the header area together with every header pattern.
func (s BankSignature) MaxTheoreticalScore() int {
	k := len(s.Keywords)
	return 5*k + 3*len(s.HeaderPatterns) + 2*k
}

// DetectionResult is the outcome of identifying the issuing bank of a statement.
// A result without a bank always has zero confidence and no signature.
type DetectionResult struct {
	Bank       string          `json:"bank,omitempty"`
	Confidence float64         `json:"confidence"`
	Signature  *BankSignature  `json:"signature,omitempty"`
	Source     DetectionSource `json:"source"`
}

// UnknownDetection is the result returned when no bank could be identified.
func UnknownDetection() DetectionResult {
	return DetectionResult{Source: SourceUnknown}
}

// Found reports whether a bank was identified.
func (d DetectionResult) Found() bool {
	return d.Bank != ""
}
