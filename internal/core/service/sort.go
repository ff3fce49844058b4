package service

import (
	"sort"

	"smartcheck/internal/core/domain/models"
)

func sortByScanTime(files []models.ScanFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ScannedAt.Before(files[j].ScannedAt)
	})
}
