package handlers

import (
	"context"

	"checkin-system/internal/services"
	"checkin-system/internal/services/realtime"
	"checkin-system/internal/status"
)

// ScanHandler answers scans published by stations over PubNub.
func ScanHandler(checkin *services.CheckInService) realtime.ScanHandler {
	return func(ctx context.Context, ev realtime.ScanEvent) realtime.ScanReply {
		reply := realtime.ScanReply{Token: ev.Token}

		alloc, err := checkin.CheckInToken(ctx, "", ev.Token)
		if err != nil {
			reply.OK = status.Informational(err)
			reply.Message = UserMessage(err)
			return reply
		}

		reply.OK = true
		reply.RegistrationID = alloc.RegistrationID
		reply.Course = alloc.Course
		reply.DisplayQueueNumber = alloc.DisplayQueueNumber
		reply.Message = "Checked in"
		return reply
	}
}
