package ota

import (
	"fmt"

	"github.com/google/uuid"
)

// OtaId identifies one OTA attempt. UUID is cloud-assigned; URL may be
// empty in terminal reports.
type OtaId struct {
	UUID uuid.UUID
	URL  string
}

// StatusKind discriminates the OtaStatus tagged variant.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusInit
	StatusAcknowledged
	StatusDownloading
	StatusDeploying
	StatusDeployed
	StatusRebooting
	StatusRebooted
	StatusSuccess
	StatusFailure
)

func (k StatusKind) String() string {
	switch k {
	case StatusIdle:
		return "Idle"
	case StatusInit:
		return "Init"
	case StatusAcknowledged:
		return "Acknowledged"
	case StatusDownloading:
		return "Downloading"
	case StatusDeploying:
		return "Deploying"
	case StatusDeployed:
		return "Deployed"
	case StatusRebooting:
		return "Rebooting"
	case StatusRebooted:
		return "Rebooted"
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// DeployProgress carries progress reported while the bundle is being
// deployed into the inactive slot.
type DeployProgress struct {
	Percentage int
	Message    string
}

// OtaStatus is the tagged variant from spec section 3. Exactly one
// field set is meaningful depending on Kind.
type OtaStatus struct {
	Kind    StatusKind
	Id      *OtaId
	Percent int
	Deploy  DeployProgress
	Err     *OtaError
}

func Idle() OtaStatus { return OtaStatus{Kind: StatusIdle} }

func Init(id OtaId) OtaStatus { return OtaStatus{Kind: StatusInit, Id: &id} }

func Acknowledged(id OtaId) OtaStatus { return OtaStatus{Kind: StatusAcknowledged, Id: &id} }

func Downloading(id OtaId, percent int) OtaStatus {
	return OtaStatus{Kind: StatusDownloading, Id: &id, Percent: percent}
}

func Deploying(id OtaId, p DeployProgress) OtaStatus {
	return OtaStatus{Kind: StatusDeploying, Id: &id, Deploy: p}
}

func Deployed(id OtaId) OtaStatus { return OtaStatus{Kind: StatusDeployed, Id: &id} }

func Rebooting(id OtaId) OtaStatus { return OtaStatus{Kind: StatusRebooting, Id: &id} }

func Rebooted() OtaStatus { return OtaStatus{Kind: StatusRebooted} }

func Success(id OtaId) OtaStatus { return OtaStatus{Kind: StatusSuccess, Id: &id} }

func Failure(err *OtaError, id *OtaId) OtaStatus {
	return OtaStatus{Kind: StatusFailure, Id: id, Err: err}
}

// ErrKind discriminates the OtaError tagged variant.
type ErrKind int

const (
	ErrCanceled ErrKind = iota
	ErrInvalidBaseImage
	ErrUpdateAlreadyInProgress
	ErrSystemRollback
	ErrIoError
	ErrInternalError
	ErrNetwork
)

// OtaError is the only error type allowed to cross the OTA system
// boundary; it maps 1-to-1 onto the cloud-facing statusCode strings.
type OtaError struct {
	Kind   ErrKind
	Reason string
}

func (e *OtaError) Error() string {
	if e.Reason == "" {
		return e.StatusCode()
	}
	return fmt.Sprintf("%s: %s", e.StatusCode(), e.Reason)
}

// StatusCode returns the fixed cloud-facing statusCode string for this
// error kind (spec section 6).
func (e *OtaError) StatusCode() string {
	switch e.Kind {
	case ErrCanceled:
		return "Canceled"
	case ErrInvalidBaseImage:
		return "InvalidBaseImage"
	case ErrUpdateAlreadyInProgress:
		return "UpdateAlreadyInProgress"
	case ErrSystemRollback:
		return "SystemRollback"
	case ErrIoError:
		return "IoError"
	case ErrInternalError:
		return "InternalError"
	case ErrNetwork:
		return "Network"
	default:
		return ""
	}
}

func Canceled() *OtaError { return &OtaError{Kind: ErrCanceled} }

func InvalidBaseImage(reason string) *OtaError {
	return &OtaError{Kind: ErrInvalidBaseImage, Reason: reason}
}

func UpdateAlreadyInProgress() *OtaError { return &OtaError{Kind: ErrUpdateAlreadyInProgress} }

func SystemRollback(reason string) *OtaError {
	return &OtaError{Kind: ErrSystemRollback, Reason: reason}
}

func IoError(reason string) *OtaError { return &OtaError{Kind: ErrIoError, Reason: reason} }

func InternalError(reason string) *OtaError {
	return &OtaError{Kind: ErrInternalError, Reason: reason}
}

func Network(reason string) *OtaError { return &OtaError{Kind: ErrNetwork, Reason: reason} }

// PersistentState survives across a reboot; it is written exactly
// before issuing the install that flips the active slot.
type PersistentState struct {
	UUID uuid.UUID
	Slot string
}

// OtaEvent is the cloud-facing wire record translated from OtaStatus
// by the Status Router.
type OtaEvent struct {
	RequestUUID    string `json:"requestUUID"`
	Status         string `json:"status"`
	StatusCode     string `json:"statusCode"`
	StatusProgress int    `json:"statusProgress"`
	Message        string `json:"message"`
}

// ToEvent translates a non-Idle OtaStatus into its wire record. Idle
// never appears on the wire; callers should skip it.
func ToEvent(s OtaStatus) OtaEvent {
	ev := OtaEvent{Status: s.Kind.String()}

	if s.Id != nil {
		ev.RequestUUID = s.Id.UUID.String()
	}

	switch s.Kind {
	case StatusDownloading:
		ev.StatusProgress = s.Percent
	case StatusDeploying:
		ev.StatusProgress = s.Deploy.Percentage
		ev.Message = s.Deploy.Message
	case StatusFailure:
		if s.Err != nil {
			ev.StatusCode = s.Err.StatusCode()
			ev.Message = s.Err.Reason
		}
	}

	return ev
}

// RequestOp discriminates an OtaRequest.
type RequestOp int

const (
	OpUpdate RequestOp = iota
	OpCancel
)

// OtaRequest is an inbound command accepted by the Handler.
type OtaRequest struct {
	Op   RequestOp
	URL  string
	UUID uuid.UUID
}
