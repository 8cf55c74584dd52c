// Package domain holds helpers shared by the marketplace entity packages.
package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh document identifier in ObjectID hex form.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id is a well-formed document identifier.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
