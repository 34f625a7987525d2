// rajada dispara requests contra o chatd para conferir o rate limit na prática.
//
//	JWT_SECRET=... go run ./teste-validacao/rajada -url http://localhost:8080/api/groups/<id>/messages -method POST -n 40
package main

import (
	"flag"
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"taqui-realtime/middleware/auth"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	url := flag.String("url", "http://localhost:8080/api/auth/me", "endpoint alvo")
	method := flag.String("method", http.MethodGet, "método HTTP")
	n := flag.Int("n", 20, "total de requests")
	workers := flag.Int("c", 4, "requests em paralelo")
	body := flag.String("body", `{"content":"rajada"}`, "corpo para POST/PATCH")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Println("JWT_SECRET não definido")
		os.Exit(1)
	}
	tok, err := auth.NewVerifier([]byte(secret)).Issue(auth.Principal{ID: uuid.New(), Username: "rajada"}, time.Hour)
	if err != nil {
		fmt.Printf("Erro ao emitir token: %s\n", err)
		os.Exit(1)
	}

	var (
		mu     sync.Mutex
		status = map[int]int{}
		wg     sync.WaitGroup
		jobs   = make(chan struct{})
	)
	client := &http.Client{Timeout: 10 * time.Second}

	for range *workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				payload := ""
				if *method == http.MethodPost || *method == http.MethodPatch {
					payload = *body
				}
				req, _ := http.NewRequest(*method, *url, strings.NewReader(payload))
				req.Header.Set("Authorization", "Bearer "+tok)
				req.Header.Set("Content-Type", "application/json")

				code := -1
				if resp, err := client.Do(req); err == nil {
					code = resp.StatusCode
					_ = resp.Body.Close()
				}
				mu.Lock()
				status[code]++
				mu.Unlock()
			}
		}()
	}

	start := time.Now()
	for range *n {
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("%d requests em %s contra %s %s\n", *n, time.Since(start).Round(time.Millisecond), *method, *url)
	for _, code := range slices.Sorted(maps.Keys(status)) {
		fmt.Printf("  %4d -> %d\n", code, status[code])
	}
}
