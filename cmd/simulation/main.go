package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/dca-vault-api/internal/auth"
	"github.com/ksred/dca-vault-api/internal/bank"
	"github.com/ksred/dca-vault-api/internal/config"
	"github.com/ksred/dca-vault-api/internal/database"
	"github.com/ksred/dca-vault-api/internal/escrow"
	"github.com/ksred/dca-vault-api/internal/events"
	"github.com/ksred/dca-vault-api/internal/fees"
	"github.com/ksred/dca-vault-api/internal/oracle"
	"github.com/ksred/dca-vault-api/internal/vault"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	minVaults     = 10
	maxVaults     = 60
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
)

var (
	pairs = [][2]string{
		{"ukuji", "udemo"},
		{"uusk", "udemo"},
		{"uatom", "udemo"},
	}
	intervals = []string{"every_second", "every_minute"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the vault API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"create":  {name: "Create Vault"},
			"deposit": {name: "Deposit"},
			"execute": {name: "Execute Trigger"},
			"get":     {name: "Get Vault"},
			"cancel":  {name: "Cancel Vault"},
			"events":  {name: "Get Events"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// vaultSummary is the subset of the vault response the simulation inspects
type vaultSummary struct {
	VaultID uint64 `json:"id"`
	Owner   string `json:"owner"`
	Status  string `json:"status"`
	Balance struct {
		Denom  string `json:"denom"`
		Amount int64  `json:"amount"`
	} `json:"balance"`
	ReceivedAmount struct {
		Denom  string `json:"denom"`
		Amount int64  `json:"amount"`
	} `json:"received_amount"`
	Trigger *struct {
		TargetTime time.Time `json:"target_time"`
	} `json:"trigger"`
}

func (sc *simulationClient) do(req *http.Request, statKey string) ([]byte, int, error) {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		sc.stats[statKey].failures++
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// createVault submits a new vault to the API and returns its summary
func (sc *simulationClient) createVault(payload map[string]interface{}) (*vaultSummary, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/vaults", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Idempotency-Key", uuid.New().String())

	respBody, status, err := sc.do(req, "create")
	if err != nil {
		return nil, err
	}
	log.Debug().Str("response", string(respBody)).Msg("Create vault response")

	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["create"].failures++
		return nil, fmt.Errorf("create vault failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Data vaultSummary `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if result.Data.VaultID == 0 {
		return nil, fmt.Errorf("no vault ID in response: %s", string(respBody))
	}

	return &result.Data, nil
}

// deposit tops up an existing vault
func (sc *simulationClient) deposit(vaultID uint64, owner, denom string, amount int64) (*vaultSummary, error) {
	payload := map[string]interface{}{
		"address": owner,
		"amount":  map[string]interface{}{"denom": denom, "amount": amount},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/vaults/%d/deposits", sc.baseURL, vaultID),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Idempotency-Key", uuid.New().String())

	respBody, status, err := sc.do(req, "deposit")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["deposit"].failures++
		return nil, fmt.Errorf("deposit failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Data vaultSummary `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result.Data, nil
}

// executeTrigger fires a vault's trigger through the internal surface.
// A false second return means the trigger was not due or no longer exists.
func (sc *simulationClient) executeTrigger(vaultID uint64) (*vaultSummary, bool, error) {
	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/internal/triggers/%d/execute", sc.baseURL, vaultID),
		nil,
	)
	if err != nil {
		return nil, false, err
	}

	respBody, status, err := sc.do(req, "execute")
	if err != nil {
		return nil, false, err
	}
	log.Debug().Str("response", string(respBody)).Msg("Execute trigger response")

	if status == http.StatusBadRequest || status == http.StatusNotFound {
		return nil, false, nil
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["execute"].failures++
		return nil, false, fmt.Errorf("execute trigger failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Data vaultSummary `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result.Data, true, nil
}

// getVault retrieves the current state of a vault
func (sc *simulationClient) getVault(vaultID uint64) (*vaultSummary, error) {
	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/api/v1/vaults/%d", sc.baseURL, vaultID),
		nil,
	)
	if err != nil {
		return nil, err
	}

	respBody, status, err := sc.do(req, "get")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		sc.stats["get"].failures++
		return nil, fmt.Errorf("get vault failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Data vaultSummary `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result.Data, nil
}

// cancelVault cancels a vault on behalf of its owner
func (sc *simulationClient) cancelVault(vaultID uint64, owner string) error {
	body, err := json.Marshal(map[string]string{"address": owner})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/vaults/%d/cancel", sc.baseURL, vaultID),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return err
	}

	respBody, status, err := sc.do(req, "cancel")
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["cancel"].failures++
		return fmt.Errorf("cancel vault failed with status %d: %s", status, string(respBody))
	}
	return nil
}

// countEvents fetches a vault's event ledger and returns the count per type
func (sc *simulationClient) countEvents(vaultID uint64) (map[string]int, error) {
	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/api/v1/events/%d", sc.baseURL, vaultID),
		nil,
	)
	if err != nil {
		return nil, err
	}

	respBody, status, err := sc.do(req, "events")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		sc.stats["events"].failures++
		return nil, fmt.Errorf("get events failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Data []struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	counts := make(map[string]int)
	for _, event := range result.Data {
		counts[event.Type]++
	}
	return counts, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the vault engine simulation
// It starts a local API server and simulates multiple concurrent vault owners
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Generate random number of vaults to run
	targetVaults := rand.Intn(maxVaults-minVaults) + minVaults
	log.Info().Int("target_vaults", targetVaults).Msg("Starting simulation")

	// Channel to collect created vaults
	vaultsChan := make(chan *vaultSummary, targetVaults)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createVaultsHTTP(workerID, targetVaults/numWorkers, simClient, vaultsChan)
		}(i)
	}

	// Wait for all vaults to be created
	wg.Wait()
	close(vaultsChan)

	var vaults []*vaultSummary
	for v := range vaultsChan {
		vaults = append(vaults, v)
	}

	log.Info().Int("vaults_created", len(vaults)).Msg("All vaults created")

	// Collect statistics during processing
	stats := struct {
		TotalVaults      int
		Executions       int
		Skips            int
		DrainedVaults    int
		CancelledVaults  int
		TotalReceived    int64
		FailedExecutions int
		StartTime        time.Time
		Pairs            map[string]int
		Statuses         map[string]int
	}{
		StartTime: time.Now(),
		Pairs:     make(map[string]int),
		Statuses:  make(map[string]int),
	}
	stats.TotalVaults = len(vaults)

	// Drive each vault's schedule until it drains or stops being due
	for _, v := range vaults {
		for attempt := 0; attempt < 20; attempt++ {
			updated, executed, err := simClient.executeTrigger(v.VaultID)
			if err != nil {
				log.Error().Err(err).Uint64("vault_id", v.VaultID).Msg("Failed to execute trigger")
				stats.FailedExecutions++
				break
			}
			if !executed {
				// Not due yet; give the schedule a moment to catch up
				time.Sleep(time.Second)
				continue
			}

			stats.Executions++
			log.Info().
				Uint64("vault_id", v.VaultID).
				Int64("balance", updated.Balance.Amount).
				Int64("received", updated.ReceivedAmount.Amount).
				Str("status", updated.Status).
				Msg("Trigger executed")

			if updated.Status == "inactive" || updated.Trigger == nil {
				break
			}
		}
	}

	// Cancel a third of the vaults to exercise refunds
	for i, v := range vaults {
		if i%3 != 0 {
			continue
		}
		if err := simClient.cancelVault(v.VaultID, v.Owner); err != nil {
			log.Error().Err(err).Uint64("vault_id", v.VaultID).Msg("Failed to cancel vault")
			continue
		}
		stats.CancelledVaults++
		log.Info().Uint64("vault_id", v.VaultID).Msg("Vault cancelled")
	}

	// Final pass over vault state and event ledgers
	for _, v := range vaults {
		final, err := simClient.getVault(v.VaultID)
		if err != nil {
			log.Error().Err(err).Uint64("vault_id", v.VaultID).Msg("Failed to fetch final vault state")
			continue
		}

		stats.Statuses[final.Status]++
		stats.TotalReceived += final.ReceivedAmount.Amount
		stats.Pairs[final.Balance.Denom+"/"+final.ReceivedAmount.Denom]++
		if final.Balance.Amount == 0 && final.Status == "inactive" {
			stats.DrainedVaults++
		}

		counts, err := simClient.countEvents(v.VaultID)
		if err != nil {
			log.Error().Err(err).Uint64("vault_id", v.VaultID).Msg("Failed to fetch event ledger")
			continue
		}
		stats.Skips += counts["vault_execution_skipped"]
		log.Info().
			Uint64("vault_id", v.VaultID).
			Interface("events", counts).
			Msg("Event ledger")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 VAULT SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Vault Statistics
------------------
Total Vaults:      %d
Executions:        %d
Skipped Cycles:    %d
Drained Vaults:    %d
Cancelled Vaults:  %d
Failed Executions: %d
Total Received:    %d
Duration:          %v

📈 Pair Distribution
--------------------
`, stats.TotalVaults, stats.Executions, stats.Skips, stats.DrainedVaults,
		stats.CancelledVaults, stats.FailedExecutions,
		stats.TotalReceived, duration.Round(time.Millisecond))

	// Print pair distribution with simple ASCII bar chart
	maxPairCount := 0
	for _, count := range stats.Pairs {
		if count > maxPairCount {
			maxPairCount = count
		}
	}

	for pair, count := range stats.Pairs {
		barLength := int(float64(count) / float64(maxPairCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-12s: %s (%d)\n", pair, bar, count)
	}

	fmt.Println("\n📉 Status Distribution")
	fmt.Println("------------------")
	for status, count := range stats.Statuses {
		barLength := int(float64(count) / float64(stats.TotalVaults) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-10s: %s (%d)\n", status, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("total_vaults", stats.TotalVaults).
		Int("executions", stats.Executions).
		Int64("total_received", stats.TotalReceived).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// createVaultsHTTP generates and submits random vaults to the API
// Runs as a worker goroutine, sending created vaults to vaultsChan
func createVaultsHTTP(workerID, numVaults int, simClient *simulationClient, vaultsChan chan<- *vaultSummary) {
	for i := 0; i < numVaults; i++ {
		pair := pairs[rand.Intn(len(pairs))]
		swapAmount := int64(rand.Intn(900)+100) * 1000
		cycles := int64(rand.Intn(4) + 2)
		owner := fmt.Sprintf("owner_%d", workerID)

		payload := map[string]interface{}{
			"owner":           owner,
			"label":           fmt.Sprintf("sim-%d-%d", workerID, i),
			"swap_denom":      pair[0],
			"receive_denom":   pair[1],
			"swap_amount":     swapAmount,
			"initial_deposit": swapAmount * cycles,
			"time_interval":   intervals[rand.Intn(len(intervals))],
		}
		if rand.Intn(4) == 0 {
			payload["use_extended_mode"] = true
		}

		created, err := simClient.createVault(payload)
		if err != nil {
			log.Error().Err(err).
				Str("worker_id", fmt.Sprintf("%d", workerID)).
				Str("pair", pair[0]+"/"+pair[1]).
				Msg("Failed to create vault")
			continue
		}

		// Occasionally top the vault up straight away
		if rand.Intn(3) == 0 {
			if _, err := simClient.deposit(created.VaultID, owner, pair[0], swapAmount); err != nil {
				log.Error().Err(err).Uint64("vault_id", created.VaultID).Msg("Failed to deposit")
			}
		}

		vaultsChan <- created
		log.Info().
			Str("worker_id", fmt.Sprintf("%d", workerID)).
			Uint64("vault_id", created.VaultID).
			Str("pair", pair[0]+"/"+pair[1]).
			Int64("swap_amount", swapAmount).
			Int64("deposit", swapAmount*cycles).
			Msg("Vault created")

		// Random sleep between vaults
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
}

// startServer initializes and starts the vault API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.Open("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService("vault-engine-secret-key")
	configService := config.NewService(db)
	if err := configService.Seed("treasury"); err != nil {
		return fmt.Errorf("failed to seed engine settings: %w", err)
	}
	feeService := fees.NewService(db)
	escrowService := escrow.NewService(db)
	eventService := events.NewService(db)

	pool := oracle.NewMockPool(decimal.NewFromFloat(0.0015))
	for _, pair := range pairs {
		price := decimal.NewFromFloat(rand.Float64()*1.5 + 0.5)
		pool.SetPrice(pair[0], pair[1], price, price)
	}
	ledger := bank.NewMockLedger()

	vaultService := vault.NewService(db, configService, feeService, escrowService, pool, ledger)

	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	vaultHandlers := vault.NewGinHandlers(vaultService)
	eventHandlers := events.NewGinHandlers(eventService)

	// Setup routes
	setupRoutes(router, authHandlers, vaultHandlers, eventHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality; the simulation skips auth middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	vaultHandlers *vault.GinHandlers,
	eventHandlers *events.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Vault routes
		vaults := v1.Group("/vaults")
		{
			vaults.POST("", vaultHandlers.CreateVaultHandler())
			vaults.GET("/:id", vaultHandlers.GetVaultHandler())
			vaults.POST("/:id/deposits", vaultHandlers.DepositHandler())
			vaults.POST("/:id/cancel", vaultHandlers.CancelVaultHandler(false))
		}

		// Event ledger routes
		eventRoutes := v1.Group("/events")
		{
			eventRoutes.GET("/:resource_id", eventHandlers.GetEventsByResourceIDHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		{
			internal.POST("/triggers/:id/execute", vaultHandlers.ExecuteTriggerHandler())
		}
	}
}
