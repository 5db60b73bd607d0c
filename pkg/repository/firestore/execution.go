package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type executionRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

type stepResultDoc struct {
	StepID    string
	Status    string
	Comment   string
	UpdatedAt time.Time
}

type executionDoc struct {
	ID          string
	ReleaseID   string
	StoryID     string
	TesterID    string
	Attempt     int
	Status      string
	Comment     string
	StepResults map[string]stepResultDoc
	StartedAt   time.Time
	CompletedAt *time.Time
}

func (r *executionRepository) collection() string {
	return collectionName(r.collectionPrefix, "executions")
}

// lockCollection holds one revision document per release. Assignment and
// cleanup transactions read and bump it, which forces Firestore to
// serialize them per release: a plain query read would not conflict with a
// concurrent insert (phantom), the shared lock document does.
func (r *executionRepository) lockCollection() string {
	return collectionName(r.collectionPrefix, "release_locks")
}

func (r *executionRepository) storyCollection() string {
	return collectionName(r.collectionPrefix, "release_stories")
}

func (r *executionRepository) releaseCollection() string {
	return collectionName(r.collectionPrefix, "releases")
}

func toExecutionDoc(e *model.Execution) *executionDoc {
	doc := &executionDoc{
		ID:          e.ID.String(),
		ReleaseID:   e.ReleaseID.String(),
		StoryID:     e.StoryID.String(),
		TesterID:    e.TesterID.String(),
		Attempt:     e.Attempt,
		Status:      e.Status.String(),
		Comment:     e.Comment,
		StepResults: make(map[string]stepResultDoc),
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
	}
	for id, sr := range e.StepResults {
		doc.StepResults[id.String()] = stepResultDoc{
			StepID:    sr.StepID.String(),
			Status:    sr.Status.String(),
			Comment:   sr.Comment,
			UpdatedAt: sr.UpdatedAt,
		}
	}
	return doc
}

func (d *executionDoc) toModel() *model.Execution {
	e := &model.Execution{
		ID:          types.ExecutionID(d.ID),
		ReleaseID:   types.ReleaseID(d.ReleaseID),
		StoryID:     types.StoryID(d.StoryID),
		TesterID:    types.UserID(d.TesterID),
		Attempt:     d.Attempt,
		Status:      types.ExecutionStatus(d.Status),
		Comment:     d.Comment,
		StepResults: make(map[types.StepID]*model.StepResult, len(d.StepResults)),
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
	}
	for id, sr := range d.StepResults {
		e.StepResults[types.StepID(id)] = &model.StepResult{
			StepID:    types.StepID(sr.StepID),
			Status:    types.StepStatus(sr.Status),
			Comment:   sr.Comment,
			UpdatedAt: sr.UpdatedAt,
		}
	}
	return e
}

func (r *executionRepository) txExecutionsByRelease(tx *firestore.Transaction, releaseID types.ReleaseID) ([]*executionDoc, error) {
	query := r.client.Collection(r.collection()).Where("ReleaseID", "==", releaseID.String())
	iter := tx.Documents(query)
	defer iter.Stop()

	var docs []*executionDoc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate executions", goerr.V(types.ReleaseIDKey, releaseID))
		}
		var doc executionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode execution")
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

func (r *executionRepository) txStoriesByRelease(tx *firestore.Transaction, releaseID types.ReleaseID) ([]*storyDoc, error) {
	query := r.client.Collection(r.storyCollection()).Where("ReleaseID", "==", releaseID.String())
	iter := tx.Documents(query)
	defer iter.Stop()

	var docs []*storyDoc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate release stories", goerr.V(types.ReleaseIDKey, releaseID))
		}
		var doc storyDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode release story")
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// bumpLock reads and rewrites the per-release lock document inside the
// transaction. Must be called before any write of the transaction.
func (r *executionRepository) bumpLock(tx *firestore.Transaction, releaseID types.ReleaseID) error {
	lockRef := r.client.Collection(r.lockCollection()).Doc(releaseID.String())

	var rev int64
	snap, err := tx.Get(lockRef)
	if err != nil && status.Code(err) != codes.NotFound {
		return goerr.Wrap(err, "failed to get release lock")
	}
	if err == nil {
		v, err := snap.DataAt("Rev")
		if err == nil {
			if n, ok := v.(int64); ok {
				rev = n
			}
		}
	}

	return tx.Set(lockRef, map[string]interface{}{"Rev": rev + 1})
}

func (r *executionRepository) AssignNext(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (*model.Execution, *model.ReleaseStory, error) {
	var exec *model.Execution
	var story *model.ReleaseStory

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		exec, story = nil, nil

		relSnap, err := tx.Get(r.client.Collection(r.releaseCollection()).Doc(releaseID.String()))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(types.ErrNotFound, "release not found", goerr.V(types.ReleaseIDKey, releaseID))
			}
			return goerr.Wrap(err, "failed to get release", goerr.V(types.ReleaseIDKey, releaseID))
		}
		var rel releaseDoc
		if err := relSnap.DataTo(&rel); err != nil {
			return goerr.Wrap(err, "failed to decode release")
		}
		if types.ReleaseStatus(rel.Status) != types.ReleaseStatusClosed {
			return goerr.Wrap(types.ErrConflict, "release must be closed to run tests",
				goerr.V(types.ReleaseIDKey, releaseID))
		}

		execs, err := r.txExecutionsByRelease(tx, releaseID)
		if err != nil {
			return err
		}

		blocked := make(map[string]bool)
		attempts := make(map[string]int)
		for _, e := range execs {
			st := types.ExecutionStatus(e.Status)
			if st == types.ExecutionStatusInProgress && e.TesterID == testerID.String() {
				return goerr.Wrap(types.ErrConflict, "already have an in-progress execution",
					goerr.V(types.ReleaseIDKey, releaseID), goerr.V(types.TesterIDKey, testerID))
			}
			attempts[e.StoryID]++
			if st.BlocksAssignment() {
				blocked[e.StoryID] = true
			}
		}

		stories, err := r.txStoriesByRelease(tx, releaseID)
		if err != nil {
			return err
		}
		var candidates []*storyDoc
		for _, s := range stories {
			if !blocked[s.ID] {
				candidates = append(candidates, s)
			}
		}
		if len(candidates) == 0 {
			return nil
		}

		sort.Slice(candidates, func(i, j int) bool {
			pi, pj := types.Priority(candidates[i].Priority).Rank(), types.Priority(candidates[j].Priority).Rank()
			if pi != pj {
				return pi < pj
			}
			return candidates[i].Seq < candidates[j].Seq
		})
		picked := candidates[0]

		if err := r.bumpLock(tx, releaseID); err != nil {
			return err
		}

		newExec := &model.Execution{
			ID:          types.NewExecutionID(),
			ReleaseID:   releaseID,
			StoryID:     types.StoryID(picked.ID),
			TesterID:    testerID,
			Attempt:     attempts[picked.ID] + 1,
			Status:      types.ExecutionStatusInProgress,
			StepResults: make(map[types.StepID]*model.StepResult),
			StartedAt:   time.Now().UTC(),
		}
		ref := r.client.Collection(r.collection()).Doc(newExec.ID.String())
		if err := tx.Create(ref, toExecutionDoc(newExec)); err != nil {
			return goerr.Wrap(err, "failed to create execution")
		}

		exec = newExec
		story = picked.toModel()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return exec, story, nil
}

func (r *executionRepository) Get(ctx context.Context, id types.ExecutionID) (*model.Execution, error) {
	snap, err := r.client.Collection(r.collection()).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "execution not found", goerr.V(types.ExecutionIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get execution", goerr.V(types.ExecutionIDKey, id))
	}

	var doc executionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode execution", goerr.V(types.ExecutionIDKey, id))
	}
	return doc.toModel(), nil
}

// txGetInProgress reads an execution inside the transaction and validates
// it is still in progress.
func (r *executionRepository) txGetInProgress(tx *firestore.Transaction, id types.ExecutionID) (*executionDoc, *firestore.DocumentRef, error) {
	ref := r.client.Collection(r.collection()).Doc(id.String())
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil, goerr.Wrap(types.ErrNotFound, "execution not found", goerr.V(types.ExecutionIDKey, id))
		}
		return nil, nil, goerr.Wrap(err, "failed to get execution", goerr.V(types.ExecutionIDKey, id))
	}

	var doc executionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to decode execution", goerr.V(types.ExecutionIDKey, id))
	}
	if types.ExecutionStatus(doc.Status) != types.ExecutionStatusInProgress {
		return nil, nil, goerr.Wrap(types.ErrConflict, "execution is not in progress",
			goerr.V(types.ExecutionIDKey, id), goerr.V("status", doc.Status))
	}
	return &doc, ref, nil
}

func (r *executionRepository) PutStepResult(ctx context.Context, executionID types.ExecutionID, result *model.StepResult) (*model.StepResult, error) {
	stored := *result
	stored.UpdatedAt = time.Now().UTC()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, ref, err := r.txGetInProgress(tx, executionID)
		if err != nil {
			return err
		}

		if doc.StepResults == nil {
			doc.StepResults = make(map[string]stepResultDoc)
		}
		doc.StepResults[stored.StepID.String()] = stepResultDoc{
			StepID:    stored.StepID.String(),
			Status:    stored.Status.String(),
			Comment:   stored.Comment,
			UpdatedAt: stored.UpdatedAt,
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return nil, err
	}

	copied := stored
	return &copied, nil
}

func (r *executionRepository) Finalize(ctx context.Context, executionID types.ExecutionID, status types.ExecutionStatus, comment string) (*model.Execution, error) {
	if !status.IsFinal() {
		return nil, goerr.Wrap(types.ErrConflict, "invalid final status",
			goerr.V(types.ExecutionIDKey, executionID), goerr.V("status", status))
	}

	var finalized *model.Execution
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, ref, err := r.txGetInProgress(tx, executionID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		doc.Status = status.String()
		doc.Comment = comment
		doc.CompletedAt = &now

		if err := tx.Set(ref, doc); err != nil {
			return goerr.Wrap(err, "failed to finalize execution")
		}
		finalized = doc.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

func (r *executionRepository) CleanupTester(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (types.StoryID, error) {
	var unlocked types.StoryID

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		unlocked = ""

		query := r.client.Collection(r.collection()).
			Where("ReleaseID", "==", releaseID.String()).
			Where("TesterID", "==", testerID.String()).
			Where("Status", "==", types.ExecutionStatusInProgress.String())
		iter := tx.Documents(query)
		defer iter.Stop()

		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to find in-progress execution",
				goerr.V(types.ReleaseIDKey, releaseID), goerr.V(types.TesterIDKey, testerID))
		}

		var doc executionDoc
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to decode execution")
		}

		if err := r.bumpLock(tx, releaseID); err != nil {
			return err
		}
		if err := tx.Delete(snap.Ref); err != nil {
			return goerr.Wrap(err, "failed to delete execution", goerr.V(types.ExecutionIDKey, doc.ID))
		}
		unlocked = types.StoryID(doc.StoryID)
		return nil
	})
	if err != nil {
		return "", err
	}
	return unlocked, nil
}

func (r *executionRepository) DeleteStaleInProgress(ctx context.Context, olderThan time.Time) ([]types.ExecutionID, error) {
	iter := r.client.Collection(r.collection()).
		Where("Status", "==", types.ExecutionStatusInProgress.String()).
		Where("StartedAt", "<", olderThan).
		Documents(ctx)
	defer iter.Stop()

	var candidates []types.ExecutionID
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate stale executions")
		}
		candidates = append(candidates, types.ExecutionID(snap.Ref.ID))
	}

	// Re-validate each candidate in its own transaction: it may have been
	// finalized between the query and the delete.
	var deleted []types.ExecutionID
	for _, id := range candidates {
		err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			doc, ref, err := r.txGetInProgress(tx, id)
			if err != nil {
				return err
			}
			if !doc.StartedAt.Before(olderThan) {
				return goerr.Wrap(types.ErrConflict, "execution no longer stale")
			}
			if err := r.bumpLock(tx, types.ReleaseID(doc.ReleaseID)); err != nil {
				return err
			}
			return tx.Delete(ref)
		})
		if err != nil {
			// Finalized or removed concurrently, no longer ours to reclaim.
			continue
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (r *executionRepository) ListByRelease(ctx context.Context, releaseID types.ReleaseID, opts ...interfaces.ListExecutionOption) ([]*model.Execution, error) {
	cfg := interfaces.BuildListExecutionConfig(opts...)

	query := r.client.Collection(r.collection()).Where("ReleaseID", "==", releaseID.String())
	if cfg.StoryID() != nil {
		query = query.Where("StoryID", "==", cfg.StoryID().String())
	}
	if cfg.Status() != nil {
		query = query.Where("Status", "==", cfg.Status().String())
	}
	query = query.OrderBy("StartedAt", firestore.Desc)
	if cfg.Offset() > 0 {
		query = query.Offset(cfg.Offset())
	}
	if cfg.Limit() > 0 {
		query = query.Limit(cfg.Limit())
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	result := []*model.Execution{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate executions", goerr.V(types.ReleaseIDKey, releaseID))
		}
		var doc executionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode execution")
		}
		result = append(result, doc.toModel())
	}
	return result, nil
}
