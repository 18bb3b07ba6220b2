package request

type CreateTemplate struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description *string  `json:"description"`
	OwnerOrgID  *string  `json:"owner_org_id"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=128"`
}
