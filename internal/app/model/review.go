package model

import "time"

// Rating bounds of a product review.
const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 5
)

// GuestReviewer is shown for reviews left without a name.
const GuestReviewer = "Guest"

// Review is a shopper's rating and comment on a product. Reviews are anonymous;
// Name is whatever the shopper typed.
type Review struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Name      string    `gorm:"type:varchar(80);not null" json:"name"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func (Review) TableName() string {
	return "product_reviews"
}
