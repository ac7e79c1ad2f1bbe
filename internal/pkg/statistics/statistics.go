package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/fundilink/FundiLink/app/models"
	"github.com/fundilink/FundiLink/internal/pkg/cache"
	"github.com/fundilink/FundiLink/internal/pkg/database"
)

const (
	CacheKeyPaymentsTotal  = "statistics:payments:total"
	CacheKeyCollectedTotal = "statistics:payments:collected"
	CacheKeyPaymentsDaily  = "statistics:payments:daily:%s" // format with date YYYY-MM-DD
	CacheKeyInvoicesOpen   = "statistics:invoices:open"
	CacheExpiration        = 30 * time.Minute
)

// StatisticsData summarizes collections for the admin dashboard.
type StatisticsData struct {
	TodayPayments int `json:"today_payments"`
	TotalPayments int `json:"total_payments"`
	CollectedKES  int `json:"collected_kes"`
	OpenInvoices  int `json:"open_invoices"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached figures are due for a refresh.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()
	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached figures when they are stale.
func UpdateCacheIfNeeded() {
	if !ShouldUpdateCache() {
		return
	}
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	if err := UpdateStatisticsCache(); err != nil {
		log.Printf("statistics cache refresh failed: %v", err)
		return
	}
	lastCacheUpdate = time.Now()
}

// UpdateStatisticsCache recomputes the collection figures from the database
// and stores them in Redis.
func UpdateStatisticsCache() error {
	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database unavailable")
	}

	var totalPayments int64
	if err := db.Model(&models.Payment{}).Count(&totalPayments).Error; err != nil {
		return err
	}

	var collected int64
	row := db.Model(&models.MpesaTransaction{}).
		Where("status = ?", models.MpesaStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if err := row.Scan(&collected); err != nil {
		return err
	}

	today := time.Now().UTC().Format("2006-01-02")
	var todayPayments int64
	if err := db.Model(&models.Payment{}).
		Where("created_at >= ?", today).
		Count(&todayPayments).Error; err != nil {
		return err
	}

	var openInvoices int64
	if err := db.Model(&models.Invoice{}).
		Where("status IN ?", []string{models.InvoiceStatusPending, models.InvoiceStatusOverdue}).
		Count(&openInvoices).Error; err != nil {
		return err
	}

	if err := cache.Set(CacheKeyPaymentsTotal, totalPayments, CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyCollectedTotal, collected, CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(fmt.Sprintf(CacheKeyPaymentsDaily, today), todayPayments, CacheExpiration); err != nil {
		return err
	}
	return cache.Set(CacheKeyInvoicesOpen, openInvoices, CacheExpiration)
}

// GetStatistics returns the cached figures, refreshing them when missing.
func GetStatistics() StatisticsData {
	UpdateCacheIfNeeded()

	data := StatisticsData{}
	data.TotalPayments = cachedInt(CacheKeyPaymentsTotal)
	data.CollectedKES = cachedInt(CacheKeyCollectedTotal)
	data.OpenInvoices = cachedInt(CacheKeyInvoicesOpen)
	today := time.Now().UTC().Format("2006-01-02")
	data.TodayPayments = cachedInt(fmt.Sprintf(CacheKeyPaymentsDaily, today))
	return data
}

func cachedInt(key string) int {
	val, err := cache.Get(key)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}
