package transfer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	stagingDirectoryModeConstant     = 0o700
	stagingFileModeConstant          = 0o600
	stagingPrefixTemplateConstant    = "%s_"
	permissionMaskConstant           = 0o777
	insecurePermissionsMessage       = "Fixing insecure permissions on staging base directory"
	stagingCreatedMessageConstant    = "Cloning into secure staging directory"
	stagingCleanedMessageConstant    = "Cleaned up staging directory"
	stagingCleanupFailedMessage      = "Failed to clean up staging directory, attempting forced removal"
	logFieldStagingDirectoryConstant = "staging_directory"
)

func removeTreeDefault(treePath string) error {
	return os.RemoveAll(treePath)
}

// prepareStagingDirectory creates a unique owner-only directory for one
// repository beneath the staging base, forcing the base itself to
// owner-only permissions first.
func (worker *Worker) prepareStagingDirectory(repositoryName string) (string, error) {
	if makeBaseError := os.MkdirAll(worker.stagingBasePath, stagingDirectoryModeConstant); makeBaseError != nil {
		return "", makeBaseError
	}

	baseInfo, statError := os.Stat(worker.stagingBasePath)
	if statError != nil {
		return "", statError
	}
	if baseInfo.Mode().Perm()&permissionMaskConstant != stagingDirectoryModeConstant {
		worker.logger.Warn(insecurePermissionsMessage, zap.String(logFieldStagingDirectoryConstant, worker.stagingBasePath))
		if chmodError := os.Chmod(worker.stagingBasePath, stagingDirectoryModeConstant); chmodError != nil {
			return "", chmodError
		}
	}

	stagingDirectory, makeError := os.MkdirTemp(worker.stagingBasePath, fmt.Sprintf(stagingPrefixTemplateConstant, repositoryName))
	if makeError != nil {
		return "", makeError
	}
	if chmodError := os.Chmod(stagingDirectory, stagingDirectoryModeConstant); chmodError != nil {
		return "", chmodError
	}

	worker.logger.Info(stagingCreatedMessageConstant, zap.String(logFieldStagingDirectoryConstant, stagingDirectory))
	return stagingDirectory, nil
}

// cleanupStagingDirectory removes the staging tree. Mirror clones carry
// read-only object files, so permissions are widened before removal. A
// failed removal is retried once ignoring errors and only logged.
func (worker *Worker) cleanupStagingDirectory(stagingDirectory string) {
	if len(stagingDirectory) == 0 {
		return
	}
	if _, statError := os.Stat(stagingDirectory); statError != nil {
		return
	}

	_ = filepath.WalkDir(stagingDirectory, func(entryPath string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return nil
		}
		if entry.IsDir() {
			_ = os.Chmod(entryPath, stagingDirectoryModeConstant)
		} else {
			_ = os.Chmod(entryPath, stagingFileModeConstant)
		}
		return nil
	})

	if removeError := worker.removeTree(stagingDirectory); removeError != nil {
		worker.logger.Warn(stagingCleanupFailedMessage,
			zap.String(logFieldStagingDirectoryConstant, stagingDirectory),
			zap.Error(removeError),
		)
		_ = worker.removeTree(stagingDirectory)
		return
	}

	worker.logger.Debug(stagingCleanedMessageConstant, zap.String(logFieldStagingDirectoryConstant, stagingDirectory))
}
