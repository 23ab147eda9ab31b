package models

// SymbolKind is the declaration kind of an API symbol.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindType     SymbolKind = "type"
)

// DocStatus is the documentation state of an API symbol.
type DocStatus string

const (
	DocDocumented DocStatus = "documented"
	DocMissing    DocStatus = "missing"
	DocOutdated   DocStatus = "outdated"
)

// NeedsDocumentation reports whether a symbol with this status should get a new doc comment.
func (s DocStatus) NeedsDocumentation() bool {
	return s == DocMissing || s == DocOutdated
}

// ApiSymbol is one exported declaration found by the analyzer.
type ApiSymbol struct {
	// ID is stable across runs: "<relative path>#<Receiver.>Name".
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Receiver      string     `json:"receiver,omitempty"`
	Package       string     `json:"package"`
	QualifiedName string     `json:"qualified_name"`
	FilePath      string     `json:"file_path"`
	RelativePath  string     `json:"relative_path"`
	Line          int        `json:"line"`
	Signature     string     `json:"signature"`
	Kind          SymbolKind `json:"kind"`
	DocStatus     DocStatus  `json:"doc_status"`
	ExistingDoc   string     `json:"existing_doc,omitempty"`
}

// ApiContext is the surrounding information used to prompt for a symbol's documentation.
type ApiContext struct {
	SymbolID       string
	ParameterTypes []string
	ReturnTypes    []string
	Implementation string
	CallSites      []string
	RelatedTypes   []string
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non fatal problem found while analyzing a project.
type Diagnostic struct {
	FilePath string
	Line     int
	Severity Severity
	Message  string
}

// Insertion is one doc comment to place above a symbol.
type Insertion struct {
	Symbol ApiSymbol
	Text   string
}
