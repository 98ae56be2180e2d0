package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// ID is the opaque identity of every persisted entity.
type ID = primitive.ObjectID

// NewID returns a fresh identifier.
func NewID() ID {
	return primitive.NewObjectID()
}

// ParseID parses a 24-character hex identifier, reporting a validation error for field when malformed.
func ParseID(field, raw string) (ID, error) {
	if raw == "" {
		return primitive.NilObjectID, Invalid(field, "is required")
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, Invalid(field, "is not a valid identifier")
	}
	return id, nil
}
