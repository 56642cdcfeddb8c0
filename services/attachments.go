package services

import (
	"context"
	"strings"

	"editorial-workflow-api/models"
)

type AttachFileInput struct {
	SubmissionID uint
	AssignmentID *uint
	BlobRef      string
	Kind         string
}

// AttachFile links an opaque blob reference to a submission or one of its
// assignments. Authors attach manuscripts and revisions to their own work,
// reviewers attach to their assignment, layout editors attach proofs.
func (e *WorkflowEngine) AttachFile(ctx context.Context, actor models.Actor, in AttachFileInput) (att *models.SubmissionAttachment, err error) {
	ctx, span := e.startSpan(ctx, "attach_file", actor)
	defer func() { endSpan(span, err) }()

	if err := e.authorize(ctx, actor, "attach file", ObjectSubmission, in.SubmissionID, CapSubmit, CapReview, CapDecide, CapLayout); err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(in.BlobRef)
	if ref == "" {
		return nil, newError(KindValidation, "blob reference is required")
	}
	if !models.ValidAttachmentKind(in.Kind) {
		return nil, newError(KindValidation, "unknown attachment kind %q", in.Kind)
	}
	if e.blobs != nil {
		ok, err := e.blobs.Exists(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newError(KindValidation, "blob %q does not exist", ref)
		}
	}

	unlock := e.lockSubmission(in.SubmissionID)
	defer unlock()

	denied := false
	err = e.store.InTx(ctx, func(tx WorkflowStore) error {
		sub, err := tx.GetSubmission(ctx, in.SubmissionID)
		if err != nil {
			return err
		}
		var assignment *models.ReviewAssignment
		if in.AssignmentID != nil {
			assignment, err = tx.GetAssignment(ctx, *in.AssignmentID)
			if err != nil {
				return err
			}
			if assignment.SubmissionID != sub.SubmissionID {
				return newError(KindValidation, "assignment %d does not belong to submission %d", assignment.AssignmentID, sub.SubmissionID)
			}
		}
		if !mayAttach(actor, sub, assignment, in.Kind) {
			denied = true
			return ErrForbidden
		}

		att = &models.SubmissionAttachment{
			SubmissionID: sub.SubmissionID,
			AssignmentID: in.AssignmentID,
			RoundNo:      sub.CurrentRound,
			BlobRef:      ref,
			Kind:         in.Kind,
			UploadedBy:   actor.ID,
			CreatedAt:    e.now().UTC(),
		}
		if assignment != nil {
			att.RoundNo = assignment.RoundNo
		}
		return tx.CreateAttachment(ctx, att)
	})
	if denied {
		return nil, e.deny(ctx, actor, "attach "+in.Kind, ObjectSubmission, in.SubmissionID, nil)
	}
	if err != nil {
		return nil, err
	}

	warn := e.record(ctx, actor, AuditEntry{
		Action:     ActionFileAttached,
		ObjectType: ObjectAttachment,
		ObjectID:   att.AttachmentID,
		After:      att,
		Metadata:   map[string]any{"submission_id": att.SubmissionID},
	})
	return att, warn
}

func mayAttach(actor models.Actor, sub *models.Submission, assignment *models.ReviewAssignment, kind string) bool {
	if CanDecide(actor.Role) || CanAdmin(actor.Role) {
		return true
	}
	switch kind {
	case models.AttachmentManuscript, models.AttachmentRevision:
		return CanSubmit(actor.Role) && sub.AuthorID == actor.ID && assignment == nil
	case models.AttachmentReview:
		return CanReview(actor.Role) && assignment != nil && assignment.ReviewerID == actor.ID
	case models.AttachmentProof:
		return CanLayout(actor.Role)
	}
	return false
}

// ListAttachments returns a submission's attachments to anyone who may see it.
func (e *WorkflowEngine) ListAttachments(ctx context.Context, actor models.Actor, submissionID uint) ([]models.SubmissionAttachment, error) {
	if _, err := e.GetSubmission(ctx, actor, submissionID); err != nil {
		return nil, err
	}
	return e.store.ListAttachments(ctx, submissionID)
}
