// File: services/planner/client.go
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"tripsync/models"
	"tripsync/services/coordinator"
	"tripsync/services/itinerary"
	"tripsync/services/realtime"
	"tripsync/utils"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Options tunes a DefaultPlannerService.
type Options struct {
	// DebounceDelay guards the normalizer entry point. Defaults to 200ms.
	DebounceDelay time.Duration
	Logger        *zap.Logger
}

// DefaultPlannerService is the production PlannerService. It owns the
// processor lifecycle; the coordinator, channel and store are injected and
// torn down with Close.
type DefaultPlannerService struct {
	Coordinator *coordinator.Coordinator
	Channel     *realtime.Channel
	Store       *utils.ItineraryStore

	logger    *zap.Logger
	processor *itinerary.Processor

	mu             sync.Mutex
	conversationID string
	planningID     string
	current        *models.CanonicalItinerary
	listeners      []itineraryListener
	nextListenerID int
	unsubscribeWS  func()
}

type itineraryListener struct {
	id int
	fn func(*models.CanonicalItinerary)
}

// New assembles the sync core. A previously persisted itinerary is restored
// from the store so views have data before the first network exchange.
func New(coord *coordinator.Coordinator, channel *realtime.Channel, store *utils.ItineraryStore, opts Options) *DefaultPlannerService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := &DefaultPlannerService{
		Coordinator:    coord,
		Channel:        channel,
		Store:          store,
		logger:         opts.Logger,
		conversationID: uuid.NewString(),
	}
	svc.processor = itinerary.NewProcessor(itinerary.NewNormalizer(opts.Logger), opts.DebounceDelay, svc.applyItinerary)

	if store != nil {
		if cached, err := store.Load(); err != nil {
			opts.Logger.Warn("failed to restore cached itinerary", zap.Error(err))
		} else if cached != nil {
			svc.current = cached
			opts.Logger.Info("restored cached itinerary", zap.Int("days", len(cached.Days)))
		}
	}

	return svc
}

// SendMessage posts a chat message. Transport errors propagate to the caller;
// application-level failures (success=false) come back verbatim as an
// assistant reply instead. Any itinerary payload in the response is routed to
// the normalizer.
func (s *DefaultPlannerService) SendMessage(ctx context.Context, text string) (*models.AssistantReply, error) {
	req := models.ChatRequest{
		Message:        text,
		ConversationID: s.ConversationID(),
	}
	res, err := s.Coordinator.Execute(ctx, "/chat", http.MethodPost, req)
	if err != nil {
		return nil, err
	}

	var cr models.ChatResponse
	if err := res.JSON(&cr); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	if cr.ConversationID != "" {
		s.mu.Lock()
		s.conversationID = cr.ConversationID
		s.mu.Unlock()
	}

	if !cr.Success {
		msg := cr.Message
		if msg == "" {
			msg = cr.Response
		}
		if msg == "" {
			msg = "Something went wrong. Please try again."
		}
		return &models.AssistantReply{Role: "assistant", Content: msg, IsError: true}, nil
	}

	if payload := itineraryPayload(cr.Itinerary, cr.Data); payload != nil {
		s.processor.Submit(payload)
	}

	content := cr.Response
	if content == "" {
		content = cr.Message
	}
	return &models.AssistantReply{Role: "assistant", Content: content}, nil
}

// SaveAudio uploads a recorded clip and routes any itinerary data in the
// reply to the normalizer.
func (s *DefaultPlannerService) SaveAudio(ctx context.Context, filename string, audio []byte) (*models.TranscriptResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart form: %w", err)
	}

	res, err := s.Coordinator.ExecuteRaw(ctx, "/save-audio", http.MethodPost, w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return nil, err
	}

	var tr models.TranscriptResponse
	if err := res.JSON(&tr); err != nil {
		return nil, fmt.Errorf("decode transcript response: %w", err)
	}

	if payload := itineraryPayload(nil, tr.Data); payload != nil {
		s.processor.Submit(payload)
	}
	return &tr, nil
}

// InitiatePlanning starts a step-wise planning flow and remembers the
// assigned planning id for the follow-up steps.
func (s *DefaultPlannerService) InitiatePlanning(ctx context.Context, req models.PlanningRequest) (*models.PlanningResponse, error) {
	pr, err := s.planningStep(ctx, "/initiate-travel-planning", req)
	if err != nil {
		return nil, err
	}
	if pr.PlanningID != "" {
		s.mu.Lock()
		s.planningID = pr.PlanningID
		s.mu.Unlock()
	}
	return pr, nil
}

// SearchFlights returns flight offers for the current planning session.
func (s *DefaultPlannerService) SearchFlights(ctx context.Context, req models.PlanningRequest) ([]models.Flight, error) {
	req.PlanningID = s.PlanningID()
	pr, err := s.planningStep(ctx, "/flight-search", req)
	if err != nil {
		return nil, err
	}

	var data struct {
		Flights []models.Flight `json:"flights"`
	}
	if len(pr.Data) > 0 {
		if err := json.Unmarshal(pr.Data, &data); err != nil {
			return nil, fmt.Errorf("decode flight offers: %w", err)
		}
	}
	return data.Flights, nil
}

// SelectFlight records the chosen flight offer.
func (s *DefaultPlannerService) SelectFlight(ctx context.Context, flightID string) (*models.PlanningResponse, error) {
	return s.planningStep(ctx, "/flight-select", models.PlanningRequest{
		PlanningID: s.PlanningID(),
		FlightID:   flightID,
	})
}

// GenerateItinerary asks the backend to build the day-by-day plan and feeds
// the result through the normalizer.
func (s *DefaultPlannerService) GenerateItinerary(ctx context.Context) (*models.PlanningResponse, error) {
	pr, err := s.planningStep(ctx, "/generate-itinerary", models.PlanningRequest{PlanningID: s.PlanningID()})
	if err != nil {
		return nil, err
	}
	if len(pr.Data) > 0 {
		s.processor.Submit(pr.Data)
	}
	return pr, nil
}

func (s *DefaultPlannerService) planningStep(ctx context.Context, endpoint string, req models.PlanningRequest) (*models.PlanningResponse, error) {
	res, err := s.Coordinator.Execute(ctx, endpoint, http.MethodPost, req)
	if err != nil {
		return nil, err
	}
	var pr models.PlanningResponse
	if err := res.JSON(&pr); err != nil {
		return nil, fmt.Errorf("decode planning response: %w", err)
	}
	return &pr, nil
}

// MapKey fetches the map provider key from the same-origin endpoint; it is
// never embedded in client code.
func (s *DefaultPlannerService) MapKey(ctx context.Context) (string, error) {
	res, err := s.Coordinator.Execute(ctx, "/map-key", http.MethodGet, nil)
	if err != nil {
		return "", err
	}
	var body struct {
		Key string `json:"key"`
	}
	if err := res.JSON(&body); err != nil {
		return "", fmt.Errorf("decode map key response: %w", err)
	}
	return body.Key, nil
}

// ConnectRealtime opens the push channel for the current conversation and
// starts piping itinerary updates into the normalizer.
func (s *DefaultPlannerService) ConnectRealtime() error {
	if s.Channel == nil {
		return fmt.Errorf("no realtime channel configured")
	}

	s.mu.Lock()
	if s.unsubscribeWS == nil {
		s.unsubscribeWS = s.Channel.Subscribe(s.onRealtimeMessage)
	}
	s.mu.Unlock()

	return s.Channel.Connect(s.ConversationID())
}

func (s *DefaultPlannerService) onRealtimeMessage(message []byte) {
	msgType := gjson.GetBytes(message, "type").String()
	if msgType == models.WSTypeConnectionLost {
		s.logger.Warn("realtime connection lost",
			zap.String("conversation_id", s.ConversationID()))
		return
	}

	if !carriesItinerary(message) {
		return
	}
	// The channel may reuse its buffer; hand the processor its own copy.
	payload := make(json.RawMessage, len(message))
	copy(payload, message)
	s.processor.Submit(payload)
}

// OnItinerary registers a listener for every newly normalized itinerary and
// returns its unregister func.
func (s *DefaultPlannerService) OnItinerary(fn func(*models.CanonicalItinerary)) func() {
	s.mu.Lock()
	s.nextListenerID++
	id := s.nextListenerID
	s.listeners = append(s.listeners, itineraryListener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Current returns the latest canonical itinerary, or nil before the first one.
func (s *DefaultPlannerService) Current() *models.CanonicalItinerary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ConversationID returns the id scoping chat and realtime exchanges.
func (s *DefaultPlannerService) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// PlanningID returns the id of the active step-wise planning session.
func (s *DefaultPlannerService) PlanningID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planningID
}

// Close stops timers, closes the channel and releases the coordinator.
func (s *DefaultPlannerService) Close() {
	s.processor.Stop()

	s.mu.Lock()
	unsubscribe := s.unsubscribeWS
	s.unsubscribeWS = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}

	if s.Channel != nil {
		s.Channel.Disconnect()
	}
	if s.Coordinator != nil {
		s.Coordinator.Close()
	}
}

// applyItinerary is the processor callback: persist, publish, notify.
func (s *DefaultPlannerService) applyItinerary(it *models.CanonicalItinerary) {
	if s.Store != nil {
		if err := s.Store.Save(it); err != nil {
			s.logger.Warn("failed to persist itinerary", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.current = it
	listeners := make([]itineraryListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(it)
	}
}

// itineraryPayload picks the raw itinerary-bearing blob out of a response, if
// any. The dedicated field wins over the generic data envelope.
func itineraryPayload(itineraryField, dataField json.RawMessage) json.RawMessage {
	if len(itineraryField) > 0 {
		return itineraryField
	}
	if len(dataField) > 0 && carriesItinerary(dataField) {
		return dataField
	}
	return nil
}

// carriesItinerary reports whether a raw message plausibly contains itinerary
// data under any shape the normalizer recognizes. Plain chat or status pushes
// must not reach the normalizer, or they would overwrite a good itinerary
// with the default one.
func carriesItinerary(raw []byte) bool {
	if gjson.GetBytes(raw, "type").String() == "itinerary_update" {
		return true
	}
	for _, path := range []string{"trip_summary", "daily_itinerary", "days", "itinerary", "data.itinerary", "response.itinerary"} {
		if gjson.GetBytes(raw, path).Exists() {
			return true
		}
	}
	return false
}
