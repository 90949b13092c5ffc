package structs

type SetLevelRequest struct {
	Level int `json:"level" binding:"required"`
}

// SetExperienceRequest uses a pointer so that zero is accepted
type SetExperienceRequest struct {
	Experience *int `json:"experience" binding:"required"`
}

type AwardXPRequest struct {
	Action      string `json:"action" binding:"required"`
	Description string `json:"description"`
}
