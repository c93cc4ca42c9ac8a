package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/bizease/internal/adapter/storage"
	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/core/service"
	"github.com/rl1809/bizease/internal/port"
)

const (
	ownerID       = "stress-owner"
	productName   = "Limited Mug"
	initialStock  = 20
	totalRequests = 50
	replays       = 10 // requests re-sent with an already used idempotency key
)

var unitPrice = decimal.RequireFromString("12500.00")

func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Optional Redis for idempotency keys
	var cache port.CacheRepository
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		cache = storage.NewRedisAdapter(rdb, time.Hour)
	}

	store := storage.NewMemoryAdapter()
	inventory := service.NewInventoryService(store, logger)
	item, err := inventory.CreateItem(ctx, ownerID, service.CreateInventoryItemInput{
		ProductName: productName,
		Price:       unitPrice,
		StockLevel:  initialStock,
	})
	if err != nil {
		logger.Fatal("failed to seed inventory", zap.Error(err))
	}

	orders := service.NewOrderService(store, cache, zap.NewNop())
	stats := service.NewStatsService(store)

	// Counters
	var successCount, stockOutCount, duplicateCount, otherCount atomic.Int32

	keys := make([]string, totalRequests)
	for i := range keys {
		keys[i] = uuid.NewString()
	}

	place := func(n int, key string) {
		_, err := orders.CreateOrder(ctx, ownerID, service.CreateOrderInput{
			ClientName:      fmt.Sprintf("client-%d", n),
			OrderDate:       time.Now(),
			OrderedProducts: []service.LineItemInput{{Name: productName, Quantity: 1, Price: unitPrice}},
			IdempotencyKey:  key,
		})
		var problems domain.ProductErrors
		switch {
		case err == nil:
			successCount.Add(1)
		case errors.As(err, &problems):
			stockOutCount.Add(1)
		case errors.Is(err, domain.ErrDuplicateRequest):
			duplicateCount.Add(1)
		default:
			otherCount.Add(1)
			logger.Error("unexpected failure", zap.Int("request", n), zap.Error(err))
		}
	}

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			place(n, keys[n])
		}(i)
	}
	for i := 0; i < replays; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			place(totalRequests+n, keys[n])
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	final, err := inventory.GetItem(ctx, ownerID, item.ID)
	if err != nil {
		logger.Fatal("failed to read final stock", zap.Error(err))
	}
	summary, err := stats.GetStats(ctx, ownerID)
	if err != nil {
		logger.Fatal("failed to read stats", zap.Error(err))
	}

	success := int(successCount.Load())
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d (+%d replays)\n", totalRequests, replays)
	fmt.Printf("Committed:        %d\n", success)
	fmt.Printf("Out of stock:     %d\n", stockOutCount.Load())
	fmt.Printf("Duplicates:       %d\n", duplicateCount.Load())
	fmt.Printf("Other failures:   %d\n", otherCount.Load())
	fmt.Printf("Final Stock:      %d\n", final.StockLevel)
	fmt.Printf("Revenue:          %s\n", summary.TotalRevenue.StringFixed(2))
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if success != initialStock || final.StockLevel != 0 {
		fmt.Printf("FAIL: expected %d orders and stock 0, got %d orders and stock %d\n", initialStock, success, final.StockLevel)
		ok = false
	}
	if summary.TotalOrders != success {
		fmt.Printf("FAIL: stats count %d orders, committed %d\n", summary.TotalOrders, success)
		ok = false
	}
	if want := unitPrice.Mul(decimal.NewFromInt(int64(success))); !summary.TotalRevenue.Equal(want) {
		fmt.Printf("FAIL: revenue %s, expected %s\n", summary.TotalRevenue.StringFixed(2), want.StringFixed(2))
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
	fmt.Println("PASS: no overselling, ledger and stats agree")
}
