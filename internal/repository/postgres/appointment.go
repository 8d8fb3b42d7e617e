package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, provider_id, date, time, patient_name, patient_phone,
			patient_email, reason, amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.GetDB().ExecContext(ctx, query,
		appointment.ID,
		appointment.ProviderID,
		appointment.Date,
		appointment.Time,
		appointment.PatientName,
		appointment.PatientPhone,
		appointment.PatientEmail,
		appointment.Reason,
		appointment.AmountIDR,
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, provider_id, date, time, patient_name, patient_phone,
			   patient_email, reason, amount, status, cancel_reason,
			   created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	if err := r.GetDB().GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", mapNotFound(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error {
	query := `
		UPDATE appointments
		SET status = $1, cancel_reason = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := r.GetDB().ExecContext(ctx, query, status, cancelReason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, provider_id, date, time, patient_name, patient_phone,
			   patient_email, reason, amount, status, cancel_reason,
			   created_at, updated_at
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filters != nil {
		if filters.ProviderID != uuid.Nil {
			query += fmt.Sprintf(" AND provider_id = $%d", argNum)
			args = append(args, filters.ProviderID)
			argNum++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argNum)
			args = append(args, filters.Status)
			argNum++
		}
		if filters.StartDate != "" {
			query += fmt.Sprintf(" AND date >= $%d", argNum)
			args = append(args, filters.StartDate)
			argNum++
		}
		if filters.EndDate != "" {
			query += fmt.Sprintf(" AND date <= $%d", argNum)
			args = append(args, filters.EndDate)
			argNum++
		}
	}
	query += " ORDER BY date, time"

	var appointments []*model.Appointment
	if err := r.GetDB().SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) BookedTimes(ctx context.Context, providerID uuid.UUID, from, to string) (map[string][]string, error) {
	query := `
		SELECT date, time
		FROM appointments
		WHERE provider_id = $1
		  AND date >= $2 AND date < $3
		  AND status != $4
		ORDER BY date, time
	`
	rows, err := r.GetDB().QueryxContext(ctx, query, providerID, from, to, model.AppointmentStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to query booked times: %w", err)
	}
	defer rows.Close()

	booked := make(map[string][]string)
	for rows.Next() {
		var date, timeOfDay string
		if err := rows.Scan(&date, &timeOfDay); err != nil {
			return nil, fmt.Errorf("failed to scan booked time: %w", err)
		}
		booked[date] = append(booked[date], timeOfDay)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booked times: %w", err)
	}
	return booked, nil
}

func (r *appointmentRepository) Exists(ctx context.Context, providerID uuid.UUID, date, timeOfDay string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1 AND date = $2 AND time = $3
			  AND status != $4
		)
	`
	var exists bool
	if err := r.GetDB().GetContext(ctx, &exists, query, providerID, date, timeOfDay, model.AppointmentStatusCancelled); err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return exists, nil
}
