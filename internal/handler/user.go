package handler

import "github.com/sakif/chat-wrapper/internal/model"

// userResponse is the public view of a user. The password hash and
// timestamps never leave the server. Username mirrors LoginName for older
// clients.
type userResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	LoginName   string `json:"loginName"`
	Username    string `json:"username"`
	IsAdmin     bool   `json:"isAdmin"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		LoginName:   u.LoginName,
		Username:    u.LoginName,
		IsAdmin:     u.IsAdmin,
	}
}

type userEnvelope struct {
	User userResponse `json:"user"`
}
