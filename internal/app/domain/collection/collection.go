package collection

import "time"

// DefaultRoyaltyPercentage applies to collections created from applications.
const DefaultRoyaltyPercentage = 5

// Stats aggregates secondary market activity.
type Stats struct {
	Volume     float64 `json:"volume" bson:"volume"`
	Sales      int     `json:"sales" bson:"sales"`
	FloorPrice string  `json:"floorPrice" bson:"floorPrice"`
}

// Settings holds admin-controlled presentation options.
type Settings struct {
	IsVisible         bool    `json:"isVisible" bson:"isVisible"`
	RoyaltyPercentage float64 `json:"royaltyPercentage" bson:"royaltyPercentage"`
}

// Collection is a published set of ordinals derived from an approved
// application.
type Collection struct {
	ID            string    `json:"_id" bson:"_id"`
	Name          string    `json:"name" bson:"name"`
	Slug          string    `json:"slug" bson:"slug"`
	Description   string    `json:"description" bson:"description"`
	Image         string    `json:"image" bson:"image"`
	Creator       string    `json:"creator" bson:"creator"`
	Price         string    `json:"price" bson:"price"`
	TotalSupply   int       `json:"totalSupply" bson:"totalSupply"`
	Minted        int       `json:"minted" bson:"minted"`
	Stats         Stats     `json:"stats" bson:"stats"`
	Settings      Settings  `json:"settings" bson:"settings"`
	ApplicationID string    `json:"applicationId" bson:"applicationId"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}
