package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
)

// Shared in-memory stubs used across the service tests.

type studentReaderStub struct {
	mu       sync.Mutex
	students map[string]*models.Student
}

func newStudentReaderStub(students ...*models.Student) *studentReaderStub {
	s := &studentReaderStub{students: map[string]*models.Student{}}
	for _, st := range students {
		s.students[st.ID] = st
	}
	return s
}

func (s *studentReaderStub) FindByID(_ context.Context, id string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.students[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentReaderStub) FindByUserID(_ context.Context, userID string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.students {
		if st.UserID != nil && *st.UserID == userID {
			cp := *st
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type supervisorReaderStub struct {
	supervisors map[string]*models.Supervisor
	assignments *assignmentRepoStub
}

func newSupervisorReaderStub(assignments *assignmentRepoStub, supervisors ...*models.Supervisor) *supervisorReaderStub {
	s := &supervisorReaderStub{supervisors: map[string]*models.Supervisor{}, assignments: assignments}
	for _, sup := range supervisors {
		s.supervisors[sup.ID] = sup
	}
	if assignments != nil {
		assignments.supervisors = s.supervisors
	}
	return s
}

func (s *supervisorReaderStub) FindByID(_ context.Context, id string) (*models.Supervisor, error) {
	if sup, ok := s.supervisors[id]; ok {
		cp := *sup
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *supervisorReaderStub) FindByUserID(_ context.Context, userID string) (*models.Supervisor, error) {
	for _, sup := range s.supervisors {
		if sup.UserID != nil && *sup.UserID == userID {
			cp := *sup
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *supervisorReaderStub) LoadCounts(_ context.Context, sessionID string, supervisorType models.SupervisorType) ([]models.SupervisorLoad, error) {
	var loads []models.SupervisorLoad
	for _, sup := range s.supervisors {
		if !sup.Active || sup.Type != supervisorType {
			continue
		}
		count := 0
		if s.assignments != nil {
			for _, a := range s.assignments.rows {
				if a.SupervisorID == sup.ID && a.SessionID == sessionID && string(a.Type) == string(supervisorType) {
					count++
				}
			}
		}
		loads = append(loads, models.SupervisorLoad{
			SupervisorID: sup.ID,
			FullName:     sup.FullName,
			Email:        sup.Email,
			Assigned:     count,
			CreatedAt:    sup.CreatedAt,
		})
	}
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].Assigned != loads[j].Assigned {
			return loads[i].Assigned < loads[j].Assigned
		}
		if !loads[i].CreatedAt.Equal(loads[j].CreatedAt) {
			return loads[i].CreatedAt.Before(loads[j].CreatedAt)
		}
		return loads[i].SupervisorID < loads[j].SupervisorID
	})
	return loads, nil
}

type assignmentRepoStub struct {
	mu          sync.Mutex
	rows        []models.SupervisorAssignment
	students    *studentReaderStub
	supervisors map[string]*models.Supervisor
	nextID      int
}

func (s *assignmentRepoStub) FindActive(_ context.Context, studentID, sessionID string, assignmentType models.AssignmentType) (*models.SupervisorAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].StudentID == studentID && s.rows[i].SessionID == sessionID && s.rows[i].Type == assignmentType {
			cp := s.rows[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentRepoStub) ListBySupervisor(_ context.Context, supervisorID, sessionID string, assignmentType models.AssignmentType) ([]models.AssignmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var details []models.AssignmentDetail
	for _, row := range s.rows {
		if row.SupervisorID == supervisorID && row.SessionID == sessionID && row.Type == assignmentType {
			details = append(details, models.AssignmentDetail{SupervisorAssignment: row})
		}
	}
	return details, nil
}

func (s *assignmentRepoStub) CountBySupervisor(_ context.Context, supervisorID, sessionID string, assignmentType models.AssignmentType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range s.rows {
		if row.SupervisorID == supervisorID && row.SessionID == sessionID && row.Type == assignmentType {
			count++
		}
	}
	return count, nil
}

// AssignLeastLoaded mirrors the repository contract: re-check, selection and
// insert all happen under one mutex hold, the stand-in for the session lock.
func (s *assignmentRepoStub) AssignLeastLoaded(_ context.Context, studentID, sessionID string, assignedBy *string) (*models.SupervisorAssignment, *models.Supervisor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows {
		if s.rows[i].StudentID == studentID && s.rows[i].SessionID == sessionID && s.rows[i].Type == models.AssignmentTypeSchool {
			row := s.rows[i]
			sup, ok := s.supervisors[row.SupervisorID]
			if !ok {
				return nil, nil, false, sql.ErrNoRows
			}
			cp := *sup
			return &row, &cp, false, nil
		}
	}

	counts := map[string]int{}
	for _, row := range s.rows {
		if row.SessionID == sessionID && row.Type == models.AssignmentTypeSchool {
			counts[row.SupervisorID]++
		}
	}
	var pool []*models.Supervisor
	for _, sup := range s.supervisors {
		if sup.Active && sup.Type == models.SupervisorTypeSchool {
			pool = append(pool, sup)
		}
	}
	if len(pool) == 0 {
		return nil, nil, false, sql.ErrNoRows
	}
	sort.Slice(pool, func(i, j int) bool {
		if counts[pool[i].ID] != counts[pool[j].ID] {
			return counts[pool[i].ID] < counts[pool[j].ID]
		}
		if !pool[i].CreatedAt.Equal(pool[j].CreatedAt) {
			return pool[i].CreatedAt.Before(pool[j].CreatedAt)
		}
		return pool[i].ID < pool[j].ID
	})
	chosen := *pool[0]

	s.nextID++
	row := models.SupervisorAssignment{
		ID:           fmt.Sprintf("assign-%d", s.nextID),
		StudentID:    studentID,
		SupervisorID: chosen.ID,
		SessionID:    sessionID,
		Type:         models.AssignmentTypeSchool,
		AssignedBy:   assignedBy,
		CreatedAt:    time.Now().UTC(),
	}
	s.rows = append(s.rows, row)
	s.writeCacheLocked(studentID, &chosen)
	cp := row
	return &cp, &chosen, true, nil
}

func (s *assignmentRepoStub) CreateWithCache(_ context.Context, assignment *models.SupervisorAssignment, supervisor *models.Supervisor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	assignment.ID = fmt.Sprintf("assign-%d", s.nextID)
	assignment.CreatedAt = time.Now().UTC()
	s.rows = append(s.rows, *assignment)
	if assignment.Type == models.AssignmentTypeSchool {
		s.writeCacheLocked(assignment.StudentID, supervisor)
	}
	return nil
}

func (s *assignmentRepoStub) ReplaceForSupervisor(_ context.Context, supervisor *models.Supervisor, studentIDs []string, sessionID string, assignmentType models.AssignmentType, assignedBy *string) ([]models.SupervisorAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		keep[id] = struct{}{}
	}

	var remaining []models.SupervisorAssignment
	for _, row := range s.rows {
		if row.SupervisorID == supervisor.ID && row.SessionID == sessionID && row.Type == assignmentType {
			if _, ok := keep[row.StudentID]; !ok && assignmentType == models.AssignmentTypeSchool {
				s.clearCacheLocked(row.StudentID)
			}
			continue
		}
		remaining = append(remaining, row)
	}
	s.rows = remaining

	var created []models.SupervisorAssignment
	for _, studentID := range studentIDs {
		s.nextID++
		row := models.SupervisorAssignment{
			ID:           fmt.Sprintf("assign-%d", s.nextID),
			StudentID:    studentID,
			SupervisorID: supervisor.ID,
			SessionID:    sessionID,
			Type:         assignmentType,
			AssignedBy:   assignedBy,
			CreatedAt:    time.Now().UTC(),
		}
		s.rows = append(s.rows, row)
		if assignmentType == models.AssignmentTypeSchool {
			s.writeCacheLocked(studentID, supervisor)
		}
		created = append(created, row)
	}
	return created, nil
}

func (s *assignmentRepoStub) Delete(_ context.Context, assignmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == assignmentID {
			if row.Type == models.AssignmentTypeSchool {
				s.clearCacheLocked(row.StudentID)
			}
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *assignmentRepoStub) writeCacheLocked(studentID string, supervisor *models.Supervisor) {
	if s.students == nil {
		return
	}
	s.students.mu.Lock()
	defer s.students.mu.Unlock()
	if st, ok := s.students.students[studentID]; ok {
		id, name, email := supervisor.ID, supervisor.FullName, supervisor.Email
		st.SupervisorID = &id
		st.SupervisorName = &name
		st.SupervisorMail = &email
	}
}

func (s *assignmentRepoStub) clearCacheLocked(studentID string) {
	if s.students == nil {
		return
	}
	s.students.mu.Lock()
	defer s.students.mu.Unlock()
	if st, ok := s.students.students[studentID]; ok {
		st.SupervisorID = nil
		st.SupervisorName = nil
		st.SupervisorMail = nil
	}
}

type sessionReaderStub struct {
	current *models.AcademicSession
}

func (s *sessionReaderStub) FindCurrent(context.Context) (*models.AcademicSession, error) {
	if s.current == nil {
		return nil, sql.ErrNoRows
	}
	cp := *s.current
	return &cp, nil
}

type sinkStub struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (s *sinkStub) Notify(_ context.Context, event models.NotificationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *sinkStub) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.events))
	for i, e := range s.events {
		types[i] = e.Type
	}
	return types
}
