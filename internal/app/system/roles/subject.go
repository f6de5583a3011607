package roles

import (
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FromUser builds a Subject from a stored profile.
func FromUser(u *models.User) Subject {
	if u == nil {
		return Subject{}
	}
	s := Subject{
		Role:        u.Role,
		Roles:       u.Roles,
		RegionID:    hexOf(u.RegionID),
		ChurchID:    hexOf(u.ChurchID),
		SecretaryOf: hexOf(u.SecretaryOf),
	}
	for _, id := range u.CanManageChurch {
		s.CanManageChurch = append(s.CanManageChurch, id.Hex())
	}
	return s
}

func hexOf(id *primitive.ObjectID) string {
	if id == nil || id.IsZero() {
		return ""
	}
	return id.Hex()
}
