package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/tripsplit/internal/middleware"
)

const RosterServiceName = "tripsplit.v1.RosterService"

const (
	SyncRosterProcedure = "/tripsplit.v1.RosterService/SyncRoster"
	GetRosterProcedure  = "/tripsplit.v1.RosterService/GetRoster"
)

// RosterService lets the trip application push its travelers and groups.
type RosterService struct {
	coordinator *Coordinator
}

// NewRosterService creates a RosterService.
func NewRosterService(coordinator *Coordinator) *RosterService {
	return &RosterService{coordinator: coordinator}
}

// NewRosterServiceHandler builds an HTTP handler serving every procedure of
// svc. It returns the path to mount the handler on.
func NewRosterServiceHandler(svc *RosterService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(SyncRosterProcedure, connect.NewUnaryHandler(SyncRosterProcedure, svc.SyncRoster, opts...))
	mux.Handle(GetRosterProcedure, connect.NewUnaryHandler(GetRosterProcedure, svc.GetRoster, opts...))
	return "/" + RosterServiceName + "/", mux
}

// SyncRoster replaces the trip roster. Open expenses of the trip are
// flagged for recalculation rather than recomputed here.
func (s *RosterService) SyncRoster(ctx context.Context, req *connect.Request[RosterMessage]) (*connect.Response[SyncRosterResponse], error) {
	if err := middleware.CheckTrip(ctx, req.Msg.TripID); err != nil {
		return nil, err
	}
	flagged, err := s.coordinator.SyncRoster(ctx, fromRosterMessage(req.Msg))
	if err != nil {
		return nil, toConnectError("SyncRoster", err)
	}
	if flagged == nil {
		flagged = []string{}
	}
	return connect.NewResponse(&SyncRosterResponse{FlaggedExpenses: flagged}), nil
}

// GetRoster returns the stored roster of a trip.
func (s *RosterService) GetRoster(ctx context.Context, req *connect.Request[GetRosterRequest]) (*connect.Response[RosterMessage], error) {
	if err := middleware.CheckTrip(ctx, req.Msg.TripID); err != nil {
		return nil, err
	}
	roster, err := s.coordinator.Roster(ctx, req.Msg.TripID)
	if err != nil {
		return nil, toConnectError("GetRoster", err)
	}
	return connect.NewResponse(toRosterMessage(roster)), nil
}
