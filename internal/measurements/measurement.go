package measurements

import "time"

// Measurement is a single body measurement entry. BodyFat is optional,
// entries without it stay out of the body fat averages.
type Measurement struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	Date      time.Time `json:"date"`
	Weight    float64   `json:"weight"`
	BodyFat   *float64  `json:"bodyFat,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
