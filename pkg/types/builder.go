package types

// Builder status values reported by the details endpoint. Any other
// string is treated as still-initializing by callers.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// BuilderMetadata carries the connection material for a remote builder.
// Fields may be empty until the builder reports ready.
type BuilderMetadata struct {
	Host       string `json:"host"`
	CACert     string `json:"ca"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
}

// BuilderInstance is a builder assigned by the provisioning API.
type BuilderInstance struct {
	ID       string          `json:"id"`
	Metadata BuilderMetadata `json:"metadata"`
}

// AssignResponse is the body of a successful assign call.
type AssignResponse struct {
	Instances []BuilderInstance `json:"builder_instances"`
	Message   string            `json:"message,omitempty"`
}

// DetailsResponse is the body of a details call. Arch is a comma-separated
// list of raw architecture strings (e.g. "amd64,arm64").
type DetailsResponse struct {
	Status   string          `json:"status"`
	Metadata BuilderMetadata `json:"metadata"`
	Arch     string          `json:"arch"`
}
