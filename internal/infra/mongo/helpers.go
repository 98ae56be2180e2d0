package mongo

import (
	"sort"

	"exam-prep-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// primitiveRegex builds a case-insensitive match.
func primitiveRegex(pattern string) primitive.Regex {
	return primitive.Regex{Pattern: pattern, Options: "i"}
}

// sortPlans orders by numeric amount; the stored strings do not sort numerically.
func sortPlans(plans []domain.Plan) {
	sort.Slice(plans, func(i, j int) bool { return plans[i].Amount.LessThan(plans[j].Amount) })
}
