package dto

// DeleteBindingRequest removes one logical file.
type DeleteBindingRequest struct {
	BindingID string `json:"binding_id" binding:"required"`
}
