package api

import (
	"protrack/model"
)

type actorRequest struct {
	Actor string `json:"actor"`
}

type createTaskRequest struct {
	Actor            string `json:"actor"`
	Owner            string `json:"owner"`
	Activity         string `json:"activity"`
	Area             string `json:"area"`
	Description      string `json:"description"`
	ProductReference string `json:"product_reference"`
	Priority         string `json:"priority"`
	EvidenceRef      string `json:"evidence_ref"`
	Attained         bool   `json:"attained"`
}

type finishTaskRequest struct {
	Actor       string `json:"actor"`
	QtyCan      int    `json:"qty_can"`
	QtyPet      int    `json:"qty_pet"`
	QtyOneWay   int    `json:"qty_oneway"`
	QtyLongNeck int    `json:"qty_longneck"`
	QtyProduced int    `json:"qty_produced"`
}

type rejectTaskRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type adjustmentRequest struct {
	Actor  string `json:"actor"`
	Worker string `json:"worker"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type balanceResponse struct {
	WorkerID string `json:"worker_id"`
	Balance  string `json:"balance"`
}

type rankingResponse struct {
	WorkerID string `json:"worker_id"`
	Name     string `json:"name"`
	Balance  string `json:"balance"`
}

type taskResponse struct {
	ID               string `json:"id"`
	Owner            string `json:"owner"`
	Approver         string `json:"approver,omitempty"`
	Activity         string `json:"activity"`
	Area             string `json:"area,omitempty"`
	Description      string `json:"description,omitempty"`
	ProductReference string `json:"product_reference,omitempty"`
	Priority         string `json:"priority,omitempty"`
	Status           string `json:"status"`
	Value            string `json:"value"`
	CreatedAt        string `json:"created_at,omitempty"`
	StartedAt        string `json:"started_at,omitempty"`
	FinishedAt       string `json:"finished_at,omitempty"`
	ElapsedMinutes   int    `json:"elapsed_minutes"`
	RejectionReason  string `json:"rejection_reason,omitempty"`
	QtyCan           int    `json:"qty_can"`
	QtyPet           int    `json:"qty_pet"`
	QtyOneWay        int    `json:"qty_oneway"`
	QtyLongNeck      int    `json:"qty_longneck"`
	QtyProduced      int    `json:"qty_produced"`
	EvidenceRef      string `json:"evidence_ref,omitempty"`
}

func toTaskResponse(t model.Task) taskResponse {
	resp := taskResponse{
		ID:               t.ID,
		Owner:            t.OwnerID,
		Approver:         t.ApproverID,
		Activity:         t.Activity,
		Area:             t.Area,
		Description:      t.Description,
		ProductReference: t.ProductReference,
		Priority:         t.Priority,
		Status:           string(t.Status),
		Value:            t.Value.StringFixed(2),
		ElapsedMinutes:   t.ElapsedMinutes,
		RejectionReason:  t.RejectionReason,
		QtyCan:           t.Quantities.Can,
		QtyPet:           t.Quantities.Pet,
		QtyOneWay:        t.Quantities.OneWay,
		QtyLongNeck:      t.Quantities.LongNeck,
		QtyProduced:      t.Quantities.Produced,
		EvidenceRef:      t.EvidenceRef,
	}
	if !t.CreatedAt.IsZero() {
		resp.CreatedAt = t.CreatedAt.Format(model.TimeLayout)
	}
	if !t.StartedAt.IsZero() {
		resp.StartedAt = t.StartedAt.Format(model.TimeLayout)
	}
	if !t.FinishedAt.IsZero() {
		resp.FinishedAt = t.FinishedAt.Format(model.TimeLayout)
	}
	return resp
}
