package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/temirov/memdoc/internal/datadir"
	"github.com/temirov/memdoc/internal/migrate"
	"github.com/temirov/memdoc/internal/settings"
)

const (
	invalidRequestTemplateConstant        = "invalid request: %v"
	destinationRequiredMessageConstant    = "destination is required"
	migrationInProgressMessageConstant    = "another migration is in progress"
	settingsUpdateWarningTemplateConstant = "settings_update_failed: %v"
	logMessageSettingsUpdateFailed        = "Migration succeeded but settings were not updated"
	logMessageInspectFailedConstant       = "Data directory inspection failed"
	logFieldDataDirectoryConstant         = "data_directory"
)

type errorResponse struct {
	Error              string                     `json:"error"`
	Kind               migrate.FailureKind        `json:"kind,omitempty"`
	RelativePath       string                     `json:"relative_path,omitempty"`
	VerificationReason migrate.VerificationReason `json:"verification_reason,omitempty"`
	RequiredBytes      uint64                     `json:"required_bytes,omitempty"`
	AvailableBytes     uint64                     `json:"available_bytes,omitempty"`
}

type dataDirectoryResponse struct {
	DataDirectory string           `json:"data_directory"`
	Summary       *datadir.Summary `json:"summary"`
	InspectError  string           `json:"inspect_error,omitempty"`
}

type validatePathRequest struct {
	Path   string `json:"path"`
	Create bool   `json:"create"`
}

type validatePathResponse struct {
	Valid        bool   `json:"valid"`
	Message      string `json:"message"`
	ResolvedPath string `json:"resolved_path,omitempty"`
}

type estimateRequest struct {
	Destination string `json:"destination"`
}

type estimateResponse struct {
	TotalBytes int64   `json:"total_bytes"`
	FileCount  int     `json:"file_count"`
	SameVolume bool    `json:"same_volume"`
	Seconds    float64 `json:"seconds"`
}

type migrateRequest struct {
	Destination  string `json:"destination"`
	KeepBackup   *bool  `json:"keep_backup"`
	Verification string `json:"verification"`
}

type migrateResponse struct {
	ID             string   `json:"id"`
	DataDirectory  string   `json:"data_directory"`
	FilesCopied    int      `json:"files_copied"`
	BytesCopied    int64    `json:"bytes_copied"`
	BackupLocation string   `json:"backup_location,omitempty"`
	Warnings       []string `json:"warnings"`
}

func (server *Server) handleDataDirectory(requestContext *gin.Context) {
	dataDirectory := server.DataDirectory()
	response := dataDirectoryResponse{DataDirectory: dataDirectory}

	summary, inspectError := server.inspector.Inspect(dataDirectory)
	if inspectError != nil {
		server.logger.Debug(logMessageInspectFailedConstant, zap.String(logFieldDataDirectoryConstant, dataDirectory), zap.Error(inspectError))
		response.InspectError = inspectError.Error()
	} else {
		response.Summary = &summary
	}
	requestContext.JSON(http.StatusOK, response)
}

func (server *Server) handleValidatePath(requestContext *gin.Context) {
	var request validatePathRequest
	if bindError := requestContext.ShouldBindJSON(&request); bindError != nil {
		requestContext.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(invalidRequestTemplateConstant, bindError)})
		return
	}

	result := server.validator.Validate(request.Path, datadir.ValidationOptions{
		CurrentDataDirectory: server.DataDirectory(),
		CreateMissing:        request.Create,
	})
	requestContext.JSON(http.StatusOK, validatePathResponse{Valid: result.Valid, Message: result.Message, ResolvedPath: result.ResolvedPath})
}

func (server *Server) handleEstimate(requestContext *gin.Context) {
	var request estimateRequest
	if bindError := requestContext.ShouldBindJSON(&request); bindError != nil {
		requestContext.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(invalidRequestTemplateConstant, bindError)})
		return
	}
	if len(strings.TrimSpace(request.Destination)) == 0 {
		requestContext.JSON(http.StatusBadRequest, errorResponse{Error: destinationRequiredMessageConstant})
		return
	}

	estimate, estimateError := server.migrator.Estimate(server.DataDirectory(), request.Destination)
	if estimateError != nil {
		server.respondWithMigrationError(requestContext, estimateError)
		return
	}
	requestContext.JSON(http.StatusOK, estimateResponse{
		TotalBytes: estimate.TotalBytes,
		FileCount:  estimate.FileCount,
		SameVolume: estimate.SameVolume,
		Seconds:    estimate.Duration.Seconds(),
	})
}

func (server *Server) handleMigrate(requestContext *gin.Context) {
	var request migrateRequest
	if bindError := requestContext.ShouldBindJSON(&request); bindError != nil {
		requestContext.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(invalidRequestTemplateConstant, bindError)})
		return
	}
	if len(strings.TrimSpace(request.Destination)) == 0 {
		requestContext.JSON(http.StatusBadRequest, errorResponse{Error: destinationRequiredMessageConstant})
		return
	}

	verificationMode := server.migrationDefaults.VerificationMode
	if len(strings.TrimSpace(request.Verification)) > 0 {
		parsedMode, parseError := migrate.ParseVerificationMode(request.Verification)
		if parseError != nil {
			requestContext.JSON(http.StatusBadRequest, errorResponse{Error: parseError.Error()})
			return
		}
		verificationMode = parsedMode
	}
	keepBackup := server.migrationDefaults.KeepBackup
	if request.KeepBackup != nil {
		keepBackup = *request.KeepBackup
	}

	if !server.migrationMutex.TryLock() {
		requestContext.JSON(http.StatusConflict, errorResponse{Error: migrationInProgressMessageConstant})
		return
	}
	defer server.migrationMutex.Unlock()

	server.progress.start(0)
	result, migrationError := server.migrator.Migrate(migrate.MigrationOptions{
		Source:           server.DataDirectory(),
		Destination:      request.Destination,
		KeepBackup:       keepBackup,
		Progress:         server.progress.update,
		VerificationMode: verificationMode,
		SampleSize:       server.migrationDefaults.SampleSize,
	})
	server.progress.finish()
	if migrationError != nil {
		server.respondWithMigrationError(requestContext, migrationError)
		return
	}

	warnings := make([]string, 0, len(result.Warnings))
	for _, warning := range result.Warnings {
		warnings = append(warnings, warning.String())
	}
	_, recordError := server.settingsStore.RecordMigration(settings.MigrationRecord{
		ID:             result.ID,
		Source:         result.Source,
		Destination:    result.Destination,
		BackupLocation: result.BackupLocation,
		FilesCopied:    result.Statistics.FilesCopied,
		BytesCopied:    result.Statistics.BytesCopied,
		Warnings:       warnings,
		CompletedAt:    result.CompletedAt,
	})
	if recordError != nil {
		server.logger.Error(logMessageSettingsUpdateFailed, zap.String(logFieldDataDirectoryConstant, result.Destination), zap.Error(recordError))
		warnings = append(warnings, fmt.Sprintf(settingsUpdateWarningTemplateConstant, recordError))
	}
	server.setDataDirectory(result.Destination)

	requestContext.JSON(http.StatusOK, migrateResponse{
		ID:             result.ID,
		DataDirectory:  result.Destination,
		FilesCopied:    result.Statistics.FilesCopied,
		BytesCopied:    result.Statistics.BytesCopied,
		BackupLocation: result.BackupLocation,
		Warnings:       warnings,
	})
}

func (server *Server) handleMigrateProgress(requestContext *gin.Context) {
	requestContext.JSON(http.StatusOK, server.progress.snapshot())
}

// respondWithMigrationError maps validation failures to 400 and operational failures to 500.
func (server *Server) respondWithMigrationError(requestContext *gin.Context, failure error) {
	var migrationError *migrate.MigrationError
	if !errors.As(failure, &migrationError) {
		requestContext.JSON(http.StatusInternalServerError, errorResponse{Error: failure.Error()})
		return
	}

	status := http.StatusInternalServerError
	if migrationError.Kind.IsValidation() && migrationError.Kind != migrate.FailureFilesystemUnavailable {
		status = http.StatusBadRequest
	}
	requestContext.JSON(status, errorResponse{
		Error:              migrationError.Message,
		Kind:               migrationError.Kind,
		RelativePath:       migrationError.RelativePath,
		VerificationReason: migrationError.VerificationReason,
		RequiredBytes:      migrationError.RequiredBytes,
		AvailableBytes:     migrationError.AvailableBytes,
	})
}
