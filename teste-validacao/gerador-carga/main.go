package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
)

// Gerador de carga simples para validar o motor na mão:
// N holders concorrentes disputando o mesmo pool, cada um pedindo 1 unidade.
// O esperado com capacidade C: exatamente C criadas, o resto com 409.
func main() {
	url := flag.String("url", "http://localhost:8080/reserve", "endpoint de reserva")
	pool := flag.String("pool", "tenis-ed-limitada", "pool alvo")
	n := flag.Int("n", 1000, "número de holders concorrentes")
	flag.Parse()

	var created, conflict, queued, other int64
	var wg sync.WaitGroup
	wg.Add(*n)

	for i := 0; i < *n; i++ {
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]any{
				"pool_id":   *pool,
				"holder_id": fmt.Sprintf("holder-%d", i),
				"quantity":  1,
			})
			resp, err := http.Post(*url, "application/json", bytes.NewReader(body))
			if err != nil {
				atomic.AddInt64(&other, 1)
				return
			}
			defer resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusCreated:
				atomic.AddInt64(&created, 1)
			case http.StatusConflict:
				atomic.AddInt64(&conflict, 1)
			case http.StatusAccepted:
				atomic.AddInt64(&queued, 1)
			default:
				atomic.AddInt64(&other, 1)
			}
		}(i)
	}
	wg.Wait()

	fmt.Printf("criadas=%d conflito=%d enfileiradas=%d outras=%d\n", created, conflict, queued, other)
}
