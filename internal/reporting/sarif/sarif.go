// internal/reporting/sarif/sarif.go
package sarif

// Go structs for the subset of SARIF 2.1.0 the reporter emits.
// Pointers are used for optional fields. Required fields use value types.

type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []*Run `json:"runs"`
}

type Run struct {
	Tool              *Tool          `json:"tool"`
	AutomationDetails *RunAutomation `json:"automationDetails,omitempty"`
	Invocations       []*Invocation  `json:"invocations,omitempty"`
	Results           []*Result      `json:"results"`
}

type RunAutomation struct {
	ID   *string `json:"id,omitempty"`
	GUID *string `json:"guid,omitempty"`
}

type Invocation struct {
	ExecutionSuccessful        bool            `json:"executionSuccessful"`
	StartTimeUTC               *string         `json:"startTimeUtc,omitempty"`
	EndTimeUTC                 *string         `json:"endTimeUtc,omitempty"`
	ToolExecutionNotifications []*Notification `json:"toolExecutionNotifications,omitempty"`
}

type Notification struct {
	Message    *Message                      `json:"message"`
	Level      Level                         `json:"level,omitempty"`
	Descriptor *ReportingDescriptorReference `json:"descriptor,omitempty"`
}

type ReportingDescriptorReference struct {
	ID string `json:"id"`
}

type Tool struct {
	Driver *ToolComponent `json:"driver"`
}

// ToolComponent describes the tool that produced the results.
type ToolComponent struct {
	Name           string                 `json:"name"`
	Version        *string                `json:"version,omitempty"`
	InformationURI *string                `json:"informationUri,omitempty"`
	Rules          []*ReportingDescriptor `json:"rules,omitempty"`
}

type ReportingDescriptor struct {
	ID                   string                    `json:"id"`
	Name                 *string                   `json:"name,omitempty"`
	ShortDescription     *MultiformatMessageString `json:"shortDescription,omitempty"`
	FullDescription      *MultiformatMessageString `json:"fullDescription,omitempty"`
	Help                 *MultiformatMessageString `json:"help,omitempty"`
	DefaultConfiguration *ReportingConfiguration   `json:"defaultConfiguration,omitempty"`
	Properties           *PropertyBag              `json:"properties,omitempty"`
}

type ReportingConfiguration struct {
	Level Level `json:"level,omitempty"`
}

type Result struct {
	RuleID     string       `json:"ruleId"`
	RuleIndex  *int         `json:"ruleIndex,omitempty"`
	Message    *Message     `json:"message"`
	Level      Level        `json:"level,omitempty"`
	Locations  []*Location  `json:"locations,omitempty"`
	Properties *PropertyBag `json:"properties,omitempty"`
}

type Location struct {
	PhysicalLocation *PhysicalLocation  `json:"physicalLocation,omitempty"`
	LogicalLocations []*LogicalLocation `json:"logicalLocations,omitempty"`
	Message          *Message           `json:"message,omitempty"`
}

type PhysicalLocation struct {
	ArtifactLocation *ArtifactLocation `json:"artifactLocation,omitempty"`
}

type ArtifactLocation struct {
	URI *string `json:"uri,omitempty"`
}

// LogicalLocation names a component key or a page column.
type LogicalLocation struct {
	Name               *string `json:"name,omitempty"`
	FullyQualifiedName *string `json:"fullyQualifiedName,omitempty"`
	Kind               *string `json:"kind,omitempty"`
}

type Message struct {
	Text *string `json:"text,omitempty"`
}

type MultiformatMessageString struct {
	Text     *string `json:"text"`
	Markdown *string `json:"markdown,omitempty"`
}

type PropertyBag map[string]interface{}

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)
