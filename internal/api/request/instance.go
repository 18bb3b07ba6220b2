package request

type CreateInstance struct {
	VersionID        string  `json:"version_id" validate:"required"`
	Environment      string  `json:"environment" validate:"required,max=64"`
	RuntimeTarget    *string `json:"runtime_target"`
	PolicyEnvelopeID string  `json:"policy_envelope_id" validate:"required"`
}

// UpdateInstanceStatus is the PATCH body. The status may instead be given as
// the ?status= query parameter.
type UpdateInstanceStatus struct {
	Status string `json:"status" validate:"required"`
}
