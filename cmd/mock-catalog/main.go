package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

const listingSize = 23

type card struct {
	ProductID   int    `json:"productId"`
	ProductName string `json:"productName"`
	Price       int64  `json:"price"`
	ImgURL      string `json:"imgUrl"`
}

func main() {
	r := mux.NewRouter()
	r.HandleFunc("/product/main", listing).Methods("GET")
	r.HandleFunc("/product/season/{season}", listing).Methods("GET")
	r.HandleFunc("/product/season/{season}/{sort}", listing).Methods("GET")
	r.HandleFunc("/product/{person}/{category}", listing).Methods("GET")
	r.HandleFunc("/product/{person}/{category}/{sort}", listing).Methods("GET")

	slog.Info("Mock catalog server running on :8081")
	if err := http.ListenAndServe(":8081", r); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// listing serves listingSize products per route, so the last page is short.
func listing(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if page < 1 || size < 1 {
		http.Error(w, "page and size are required", http.StatusBadRequest)
		return
	}

	route := strings.TrimPrefix(r.URL.Path, "/product/")
	seed := routeSeed(route)
	keyword := r.URL.Query().Get("keyword")

	cards := make([]card, 0, size)
	for i := (page - 1) * size; i < page*size && i < listingSize; i++ {
		name := fmt.Sprintf("%s item %d", route, i+1)
		if keyword != "" {
			name = keyword + " " + name
		}
		cards = append(cards, card{
			ProductID:   int(seed%1000)*100 + i + 1,
			ProductName: name,
			Price:       int64(10000 + (int(seed)+i*37)%90000),
			ImgURL:      fmt.Sprintf("https://picsum.photos/seed/%d/300/400", int(seed%1000)*100+i),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	response := map[string]interface{}{
		"message": "success",
		"data":    cards,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func routeSeed(route string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(route))
	return h.Sum32()
}
