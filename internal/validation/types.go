package validation

// CreateSessionRequest is the payload for POST /checkout/sessions.
// The gateway computes the total; the client never supplies an amount.
type CreateSessionRequest struct {
	PriceID     string `json:"price_id" validate:"required"`     // gateway price reference for the item
	ProductName string `json:"product_name" validate:"required"` // display name, echoed on the receipt
	SuccessURL  string `json:"success_url,omitempty" validate:"omitempty,url,startswith=http"`
	CancelURL   string `json:"cancel_url,omitempty" validate:"omitempty,url,startswith=http"`
}
