// Package policy holds the authorization rules for posts.
package policy

import "portfolio/internal/models"

// CanCreatePost reports whether user may create posts. Only admins may.
func CanCreatePost(user *models.User) bool {
	return user.IsAdmin()
}

// CanMutatePost reports whether user may edit, update or delete post:
// admins may change any post, other users only their own.
func CanMutatePost(user *models.User, post *models.Post) bool {
	if user == nil || post == nil {
		return false
	}
	return user.IsAdmin() || user.ID == post.UserID
}
