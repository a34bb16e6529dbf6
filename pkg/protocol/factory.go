package protocol

// truncate cuts s so it fits a field of size bytes including the terminator.
func truncate(s string, size int) string {
	if len(s) > size-1 {
		return s[:size-1]
	}
	return s
}

// NewAuthRequest builds a login request. Oversized credentials are truncated.
func NewAuthRequest(username, password string) *AuthRequest {
	return &AuthRequest{
		Username: truncate(username, UsernameSize),
		Password: truncate(password, PasswordSize),
	}
}

func NewAuthResponse(status Status) *AuthResponse {
	return &AuthResponse{Status: status}
}

// NewRegisterRequest builds a registration request. Oversized credentials are truncated.
func NewRegisterRequest(username, password string) *RegisterRequest {
	return &RegisterRequest{
		Username: truncate(username, UsernameSize),
		Password: truncate(password, PasswordSize),
	}
}

func NewRegisterResponse(status Status) *RegisterResponse {
	return &RegisterResponse{Status: status}
}

func NewCreateRoomRequest(roomName string) *CreateRoomRequest {
	return &CreateRoomRequest{RoomName: truncate(roomName, RoomNameSize)}
}

func NewCreateRoomResponse(status Status, roomID string) *CreateRoomResponse {
	return &CreateRoomResponse{Status: status, RoomID: truncate(roomID, RoomIDSize)}
}

func NewJoinRoomRequest(roomID string) *JoinRoomRequest {
	return &JoinRoomRequest{RoomID: truncate(roomID, RoomIDSize)}
}

func NewJoinRoomResponse(status Status, roomName, roomID string) *JoinRoomResponse {
	return &JoinRoomResponse{
		Status:   status,
		RoomName: truncate(roomName, RoomNameSize),
		RoomID:   truncate(roomID, RoomIDSize),
	}
}

func NewLeaveRoomRequest(roomID string) *LeaveRoomRequest {
	return &LeaveRoomRequest{RoomID: truncate(roomID, RoomIDSize)}
}

// NewChatMessage builds a chat frame. The server overwrites username with the
// sender's authenticated identity before relaying, so clients may leave it empty.
func NewChatMessage(roomID, username, text string) *ChatMessage {
	return &ChatMessage{
		RoomID:   truncate(roomID, RoomIDSize),
		Username: truncate(username, UsernameSize),
		Text:     truncate(text, TextSize),
	}
}

func NewErrorMessage(code Status, text string) *ErrorMessage {
	return &ErrorMessage{Code: code, Text: truncate(text, TextSize)}
}
