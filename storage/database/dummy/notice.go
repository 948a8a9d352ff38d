package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/notice"
)

type readReceipt struct {
	schoolID string
	readAt   time.Time
}

type noticeRepository struct {
	db *noticeTable
}

var _ notice.Repository = (*noticeRepository)(nil)

func NewNoticeRepository(db *DB) notice.Repository {
	return &noticeRepository{db: db.notice}
}

func (repo *noticeRepository) CreateNotice(_ context.Context, n notice.Notice) (notice.Notice, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.notices[n.ID] = &n
	return n, nil
}

func (repo *noticeRepository) GetNotice(_ context.Context, schoolID, id string) (notice.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.notices[id]; ok && n.SchoolID == schoolID {
		return *n, nil
	}
	return notice.Notice{}, notice.ErrNotFound
}

func (repo *noticeRepository) query(schoolID string) []notice.Notice {
	notices := make([]notice.Notice, 0)
	for _, n := range repo.db.notices {
		if n.SchoolID == schoolID {
			notices = append(notices, *n)
		}
	}
	return notices
}

func (repo *noticeRepository) QueryNotices(_ context.Context, schoolID string, filter notice.QueryFilter) ([]notice.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	var filtered []notice.Notice
	for _, n := range repo.query(schoolID) {
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		created := core.DateOf(n.CreatedAt)
		if !filter.From.IsZero() && created.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && created.After(filter.To) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(n.Title), search) &&
			!strings.Contains(strings.ToLower(n.Body), search) {
			continue
		}
		filtered = append(filtered, n)
	}

	sortNotices(filtered, filter.Orderings)

	if filter.Page.Offset >= len(filtered) {
		return []notice.Notice{}, nil
	}
	filtered = filtered[filter.Page.Offset:]
	if filter.Page.Limit > 0 && filter.Page.Limit < len(filtered) {
		filtered = filtered[:filter.Page.Limit]
	}
	return filtered, nil
}

var priorityRank = map[notice.Priority]int{notice.PriorityLow: 1, notice.PriorityMedium: 2, notice.PriorityHigh: 3}

// sortNotices orders by the given orderings, then by creation time (newest first).
func sortNotices(notices []notice.Notice, orderings []core.DBOrdering) {
	sort.SliceStable(notices, func(i, j int) bool {
		a, b := notices[i], notices[j]
		for _, ord := range orderings {
			var cmp int
			switch ord.Field {
			case "created_at":
				cmp = compareTime(a.CreatedAt, b.CreatedAt)
			case "priority":
				cmp = priorityRank[a.Priority] - priorityRank[b.Priority]
			case "title":
				cmp = strings.Compare(a.Title, b.Title)
			case "type":
				cmp = strings.Compare(string(a.Type), string(b.Type))
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *noticeRepository) UpdateNotice(_ context.Context, n notice.Notice) (notice.Notice, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.notices[n.ID]
	if !ok || orig.SchoolID != n.SchoolID {
		return notice.Notice{}, notice.ErrNotFound
	}
	// only editable fields
	orig.Title = n.Title
	orig.Body = n.Body
	orig.Type = n.Type
	orig.Priority = n.Priority
	orig.ExpiryDate = n.ExpiryDate
	orig.UpdatedAt = n.UpdatedAt
	return *orig, nil
}

func (repo *noticeRepository) DeleteNotice(_ context.Context, schoolID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if n, ok := repo.db.notices[id]; !ok || n.SchoolID != schoolID {
		return notice.ErrNotFound
	}
	delete(repo.db.notices, id)
	for key := range repo.db.reads {
		if key.noticeID == id {
			delete(repo.db.reads, key)
		}
	}
	return nil
}

func (repo *noticeRepository) CountByType(_ context.Context, schoolID string, since time.Time) (map[notice.Type]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[notice.Type]int)
	for _, n := range repo.query(schoolID) {
		if n.CreatedAt.Before(since) {
			continue
		}
		counts[n.Type]++
	}
	return counts, nil
}

func (repo *noticeRepository) MarkRead(_ context.Context, noticeID, userID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.notices[noticeID]
	if !ok {
		return notice.ErrNotFound
	}
	repo.db.reads[readKey{noticeID: noticeID, userID: userID}] = readReceipt{schoolID: n.SchoolID, readAt: at}
	return nil
}

func (repo *noticeRepository) CountUnread(_ context.Context, schoolID, userID string, today core.Date) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, n := range repo.query(schoolID) {
		if n.IsExpired(today) {
			continue
		}
		if _, read := repo.db.reads[readKey{noticeID: n.ID, userID: userID}]; !read {
			count++
		}
	}
	return count, nil
}

// ReadCount returns the number of read receipts of a notice.
func (db *DB) ReadCount(noticeID string) int {
	db.notice.RLock()
	defer db.notice.RUnlock()

	var count int
	for key := range db.notice.reads {
		if key.noticeID == noticeID {
			count++
		}
	}
	return count
}

// ReadAt returns when the user last marked the notice as read.
func (db *DB) ReadAt(noticeID, userID string) (time.Time, bool) {
	db.notice.RLock()
	defer db.notice.RUnlock()

	r, ok := db.notice.reads[readKey{noticeID: noticeID, userID: userID}]
	return r.readAt, ok
}

func (repo *noticeRepository) CreateStudyMessage(_ context.Context, m notice.StudyMessage) (notice.StudyMessage, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.messages[m.ID] = &m
	return m, nil
}

func (repo *noticeRepository) QueryStudyMessages(_ context.Context, schoolID, authorID string, filter notice.StudyFilter) ([]notice.StudyMessage, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]notice.StudyMessage, 0)
	for _, m := range repo.db.messages {
		if m.SchoolID != schoolID || (authorID != "" && m.AuthorID != authorID) {
			continue
		}
		if !filter.From.IsZero() && m.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && m.Date.After(filter.To) {
			continue
		}
		msgs = append(msgs, *m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].Date.After(msgs[j].Date)
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	if filter.Limit > 0 && filter.Limit < len(msgs) {
		msgs = msgs[:filter.Limit]
	}
	return msgs, nil
}
