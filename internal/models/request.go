package models

type FeedbackRequest struct {
	VideoID      uint   `json:"video_id" binding:"required" example:"12"`
	FeedbackText string `json:"feedback_text" example:"slower camera, warmer light"`
}

type RegenerateRequest struct {
	Prompt string `json:"prompt" example:"Slow push in toward the fireplace"`
}

type ImageStatusRequest struct {
	// Status uses the admin vocabulary: pending, processing, completed, failed.
	Status string `json:"status" binding:"required" example:"completed"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// RunwayWebhookRequest accepts the task id as either "id" or "job_id".
type RunwayWebhookRequest struct {
	ID      string  `json:"id"`
	JobID   string  `json:"job_id"`
	Status  string  `json:"status"`
	Failure string  `json:"failure,omitempty"`
	Output  RawJSON `json:"output,omitempty" swaggertype:"object"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
