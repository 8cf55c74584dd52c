package application

import "time"

// Status is the review state of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// DefaultMaxSupply bounds the number of ordinals one application may declare.
const DefaultMaxSupply = 10000

// Stats tracks supply figures declared by the creator.
type Stats struct {
	TotalSupply int `json:"totalSupply" bson:"totalSupply"`
	Minted      int `json:"minted" bson:"minted"`
}

// Assets holds uploaded artwork URLs and optional free-form metadata.
type Assets struct {
	Images   []string `json:"images" bson:"images"`
	Metadata string   `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Application is a creator's request to list a collection on the marketplace.
type Application struct {
	ID                string    `json:"_id" bson:"_id"`
	Name              string    `json:"name" bson:"name"`
	Slug              string    `json:"slug" bson:"slug"`
	Description       string    `json:"description" bson:"description"`
	Creator           string    `json:"creator" bson:"creator"`
	Price             string    `json:"price" bson:"price"`
	Status            Status    `json:"status" bson:"status"`
	SubmittedAt       time.Time `json:"submittedAt" bson:"submittedAt"`
	Stats             Stats     `json:"stats" bson:"stats"`
	Assets            Assets    `json:"assets" bson:"assets"`
	IsComplete        bool      `json:"isComplete" bson:"isComplete"`
	CollectionCreated bool      `json:"collectionCreated" bson:"collectionCreated"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasImages reports whether any artwork has been attached.
func (a Application) HasImages() bool {
	return len(a.Assets.Images) > 0
}
