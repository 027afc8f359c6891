package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"dineqr/internal/domain"
	"dineqr/internal/restapi"
	"dineqr/internal/session"
)

const otpResendWindow = time.Minute

type staffAuth interface {
	StaffLogin(ctx context.Context, req restapi.LoginRequest) (restapi.Session, error)
	Tables(ctx context.Context, hotelKey string) ([]domain.Table, error)
}

type otpAuth interface {
	SendOTP(ctx context.Context, req restapi.OTPRequest) error
	VerifyOTP(ctx context.Context, req restapi.VerifyOTPRequest) (restapi.Session, error)
}

// beginStaffSession logs the staff user in and caches the hotel and its
// tables under the new session.
func beginStaffSession(ctx context.Context, auth staffAuth, store *session.Store, req restapi.LoginRequest) (restapi.Session, error) {
	sess, err := auth.StaffLogin(ctx, req)
	if err != nil {
		return restapi.Session{}, fmt.Errorf("login: %w", err)
	}
	if sess.Role == "" {
		sess.Role = req.Role
	}
	if sess.HotelKey == "" {
		sess.HotelKey = req.HotelKey
	}

	if err := store.Begin(ctx, sess.Role, sess.UserID); err != nil {
		return restapi.Session{}, err
	}
	if err := store.SetAuthStep(ctx, session.StepVerified); err != nil {
		return restapi.Session{}, err
	}
	if err := store.SetHotelInfo(ctx, session.HotelInfo{HotelKey: sess.HotelKey}); err != nil {
		return restapi.Session{}, err
	}

	tables, err := auth.Tables(ctx, sess.HotelKey)
	if err != nil {
		return restapi.Session{}, fmt.Errorf("load tables: %w", err)
	}
	if err := store.SetTables(ctx, tables); err != nil {
		return restapi.Session{}, err
	}
	return sess, nil
}

// verifyGuest runs the email OTP exchange, reading the code from in.
func verifyGuest(ctx context.Context, auth otpAuth, store *session.Store, email string, in io.Reader, out io.Writer) (restapi.Session, error) {
	if err := auth.SendOTP(ctx, restapi.OTPRequest{Email: email}); err != nil {
		return restapi.Session{}, fmt.Errorf("send otp: %w", err)
	}
	if err := store.Begin(ctx, domain.RoleGuest, email); err != nil {
		return restapi.Session{}, err
	}
	if err := store.SetAuthStep(ctx, session.StepOTP); err != nil {
		return restapi.Session{}, err
	}
	if err := store.StartOTPTimer(ctx, otpResendWindow); err != nil {
		return restapi.Session{}, err
	}

	left, err := store.OTPRemaining(ctx)
	if err != nil {
		return restapi.Session{}, err
	}
	fmt.Fprintf(out, "Enter the code sent to %s (resend available in %s): ", email, left.Round(time.Second))

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && code == "" {
		return restapi.Session{}, fmt.Errorf("read otp: %w", err)
	}

	sess, err := auth.VerifyOTP(ctx, restapi.VerifyOTPRequest{Email: email, OTP: strings.TrimSpace(code)})
	if err != nil {
		return restapi.Session{}, fmt.Errorf("verify otp: %w", err)
	}
	if err := store.SetAuthStep(ctx, session.StepVerified); err != nil {
		return restapi.Session{}, err
	}
	return sess, nil
}
