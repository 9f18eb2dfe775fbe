package app

import "czarhouse/internal/domain"

// Notifier delivers events to connected members. Delivery is best effort;
// the session never retries.
type Notifier interface {
	SendToMember(memberID domain.MemberID, event *domain.RoomEvent)
	SendToRoom(roomID domain.RoomID, event *domain.RoomEvent)
	SendToRoomExcept(roomID domain.RoomID, exclude domain.MemberID, event *domain.RoomEvent)
	JoinRoom(roomID domain.RoomID, memberID domain.MemberID)
	LeaveRoom(roomID domain.RoomID, memberID domain.MemberID)
}
