package main

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	// Configuration
	baseURL := "http://localhost:8080/api/v1/drivers/%d/totals"

	numDrivers := 2000
	requestsPerDriver := 3
	totalRequests := numDrivers * requestsPerDriver
	concurrency := 50 // Number of concurrent requests to avoid local port exhaustion

	fmt.Printf("Starting load test: %d drivers (%d requests each) with concurrency %d\n", numDrivers, requestsPerDriver, concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // Semaphore to limit concurrency

	var successCount int64
	var failCount int64

	startTime := time.Now()

	for i := 0; i < numDrivers; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire token

		driverID := int64(100000 + i)

		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }() // Release token

			url := fmt.Sprintf(baseURL, id)

			for j := 0; j < requestsPerDriver; j++ {
				resp, err := http.Get(url)
				if err != nil {
					atomic.AddInt64(&failCount, 1)
					continue
				}

				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					atomic.AddInt64(&successCount, 1)
				} else {
					atomic.AddInt64(&failCount, 1)
				}
				resp.Body.Close()
			}
		}(driverID)
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(totalRequests)/duration.Seconds())
}
