package liftlog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/2beens/liftrecords/internal/records"
	"github.com/2beens/liftrecords/internal/telemetry/tracing"
	"github.com/2beens/liftrecords/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=liftlog_test

type liftlogService interface {
	AddExercise(ctx context.Context, params NewExerciseParams) (records.Exercise, error)
	GetExercise(ctx context.Context, id int64) (records.Exercise, error)
	Create(ctx context.Context, params NewEntryParams) (records.Entry, error)
	Get(ctx context.Context, id int64) (records.Entry, error)
	Update(ctx context.Context, id int64, params UpdateEntryParams) (records.Entry, error)
	Delete(ctx context.Context, id int64) error
}

type recordsService interface {
	Classify(ctx context.Context, entryID int64) (records.Classification, error)
	CurrentRecords(ctx context.Context, key records.TimelineKey) ([]records.Record, error)
	Chain(ctx context.Context, key records.RecordKey) ([]records.Record, error)
	AuditForEntry(ctx context.Context, entryID int64) ([]records.AuditRecord, error)
	AuditForExercise(ctx context.Context, exerciseID int64) ([]records.AuditRecord, error)
}

type Handler struct {
	service        liftlogService
	recordsService recordsService
}

func NewHandler(service liftlogService, recordsService recordsService) *Handler {
	return &Handler{
		service:        service,
		recordsService: recordsService,
	}
}

func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/exercises", h.HandleAddExercise).Methods("POST", "OPTIONS").Name("new-exercise")
	router.HandleFunc("/exercises/{id:[0-9]+}", h.HandleGetExercise).Methods("GET", "OPTIONS").Name("get-exercise")

	router.HandleFunc("/liftlogs", h.HandleCreate).Methods("POST", "OPTIONS").Name("new-liftlog")
	router.HandleFunc("/liftlogs/{id:[0-9]+}", h.HandleGet).Methods("GET", "OPTIONS").Name("get-liftlog")
	router.HandleFunc("/liftlogs/{id:[0-9]+}", h.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-liftlog")
	router.HandleFunc("/liftlogs/{id:[0-9]+}", h.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-liftlog")
	router.HandleFunc("/liftlogs/{id:[0-9]+}/classification", h.HandleClassification).Methods("GET", "OPTIONS").Name("classify-liftlog")

	router.HandleFunc("/records/{userId:[0-9]+}/{exerciseId:[0-9]+}", h.HandleCurrentRecords).Methods("GET", "OPTIONS").Name("current-records")
	router.HandleFunc("/records/{userId:[0-9]+}/{exerciseId:[0-9]+}/chain", h.HandleChain).Methods("GET", "OPTIONS").Name("record-chain")

	router.HandleFunc("/audit/entries/{id:[0-9]+}", h.HandleAuditForEntry).Methods("GET", "OPTIONS").Name("audit-entry")
	router.HandleFunc("/audit/exercises/{id:[0-9]+}", h.HandleAuditForExercise).Methods("GET", "OPTIONS").Name("audit-exercise")
}

func (h *Handler) HandleAddExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.liftlog.exercise.add")
	defer span.End()

	var params NewExerciseParams
	if !decodeJSON(w, r, &params) {
		return
	}

	exercise, err := h.service.AddExercise(ctx, params)
	if err != nil {
		writeError(w, "add exercise", err)
		return
	}
	pkg.WriteJSON(w, exercise, http.StatusCreated)
}

func (h *Handler) HandleGetExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.liftlog.exercise.get")
	defer span.End()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	exercise, err := h.service.GetExercise(ctx, id)
	if err != nil {
		writeError(w, "get exercise", err)
		return
	}
	pkg.WriteJSON(w, exercise, http.StatusOK)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.liftlog.create")
	defer span.End()

	var params NewEntryParams
	if !decodeJSON(w, r, &params) {
		return
	}

	entry, err := h.service.Create(ctx, params)
	if err != nil {
		writeError(w, "create lift log", err)
		return
	}

	log.Debugf("new lift log %d for user %d, exercise %d, pr: %t", entry.ID, entry.UserID, entry.ExerciseID, entry.IsPR)
	pkg.WriteJSON(w, entry, http.StatusCreated)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.liftlog.get")
	defer span.End()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.service.Get(ctx, id)
	if err != nil {
		writeError(w, "get lift log", err)
		return
	}
	pkg.WriteJSON(w, entry, http.StatusOK)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.liftlog.update")
	defer span.End()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var params UpdateEntryParams
	if !decodeJSON(w, r, &params) {
		return
	}

	entry, err := h.service.Update(ctx, id, params)
	if err != nil {
		writeError(w, "update lift log", err)
		return
	}
	pkg.WriteJSON(w, entry, http.StatusOK)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.liftlog.delete")
	defer span.End()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		writeError(w, "delete lift log", err)
		return
	}
	pkg.WriteTextResponseOK(w, "deleted")
}

func (h *Handler) HandleClassification(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.liftlog.classification")
	defer span.End()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	cl, err := h.recordsService.Classify(ctx, id)
	if err != nil {
		writeError(w, "classify lift log", err)
		return
	}
	pkg.WriteJSON(w, classificationResponse{
		EntryID:        id,
		IsPR:           cl.IsPR(),
		PRCount:        cl.Count(),
		Categories:     cl.Categories(),
		Classification: cl,
	}, http.StatusOK)
}

func (h *Handler) HandleCurrentRecords(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.current")
	defer span.End()

	key, ok := pathTimeline(w, r)
	if !ok {
		return
	}

	current, err := h.recordsService.CurrentRecords(ctx, key)
	if err != nil {
		writeError(w, "current records", err)
		return
	}
	pkg.WriteJSON(w, current, http.StatusOK)
}

func (h *Handler) HandleChain(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.chain")
	defer span.End()

	key, ok := pathTimeline(w, r)
	if !ok {
		return
	}

	slot, err := slotFromQuery(r)
	if err != nil {
		writeError(w, "record chain", err)
		return
	}

	chain, err := h.recordsService.Chain(ctx, records.RecordKey{TimelineKey: key, Slot: slot})
	if err != nil {
		writeError(w, "record chain", err)
		return
	}
	pkg.WriteJSON(w, chain, http.StatusOK)
}

func (h *Handler) HandleAuditForEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.audit.entry")
	defer span.End()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	audit, err := h.recordsService.AuditForEntry(ctx, id)
	if err != nil {
		writeError(w, "audit for entry", err)
		return
	}
	pkg.WriteJSON(w, audit, http.StatusOK)
}

func (h *Handler) HandleAuditForExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.audit.exercise")
	defer span.End()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	audit, err := h.recordsService.AuditForExercise(ctx, id)
	if err != nil {
		writeError(w, "audit for exercise", err)
		return
	}
	pkg.WriteJSON(w, audit, http.StatusOK)
}

type classificationResponse struct {
	EntryID    int64              `json:"entryId"`
	IsPR       bool               `json:"isPr"`
	PRCount    int                `json:"prCount"`
	Categories []records.Category `json:"categories"`
	records.Classification
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		pkg.WriteJSONError(w, "invalid content type", "invalid_input", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Errorf("%s %s, unmarshal json params: %s", r.Method, r.URL.Path, err)
		pkg.WriteJSONError(w, "invalid request body", "invalid_input", http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		pkg.WriteJSONError(w, fmt.Sprintf("invalid %s", name), "invalid_input", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func pathTimeline(w http.ResponseWriter, r *http.Request) (records.TimelineKey, bool) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return records.TimelineKey{}, false
	}
	exerciseID, ok := pathID(w, r, "exerciseId")
	if !ok {
		return records.TimelineKey{}, false
	}
	return records.TimelineKey{UserID: userID, ExerciseID: exerciseID}, true
}

func slotFromQuery(r *http.Request) (records.Slot, error) {
	query := r.URL.Query()
	slot := records.Slot{Category: records.Category(query.Get("category"))}

	if reps := query.Get("reps"); reps != "" {
		n, err := strconv.Atoi(reps)
		if err != nil {
			return records.Slot{}, fmt.Errorf("%w: reps [%s]", records.ErrInvalidQuery, reps)
		}
		slot.Reps = n
	}
	if weight := query.Get("weight"); weight != "" {
		w, err := strconv.ParseFloat(weight, 64)
		if err != nil {
			return records.Slot{}, fmt.Errorf("%w: weight [%s]", records.ErrInvalidQuery, weight)
		}
		slot.Weight = records.NormalizeWeight(w)
	}
	return slot, nil
}

// statusForKind maps records.ErrorKind labels to HTTP status codes.
var statusForKind = map[string]int{
	"invalid_input":       http.StatusBadRequest,
	"not_found":           http.StatusNotFound,
	"inconsistent_ledger": http.StatusInternalServerError,
	"cascade_too_large":   http.StatusInsufficientStorage,
	"internal":            http.StatusInternalServerError,
}

func writeError(w http.ResponseWriter, op string, err error) {
	kind := records.ErrorKind(err)
	status, ok := statusForKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %s", op, err)
		if kind == "internal" {
			message = op + " failed"
		}
	} else {
		log.Debugf("%s: %s", op, err)
	}
	pkg.WriteJSONError(w, message, kind, status)
}
