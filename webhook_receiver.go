package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
)

// Dev helper: point REPLAY_ALERT_WEBHOOK_URL at this process to see the
// replay alerts the auth service emits.
func main() {
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Only POST method is accepted", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Error reading request body", http.StatusInternalServerError)
			return
		}
		defer r.Body.Close()

		var data map[string]interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			http.Error(w, "Error parsing JSON", http.StatusBadRequest)
			return
		}

		log.Println("Received replay alert:")
		log.Printf("  User ID: %s", data["user_id"])
		log.Printf("  Operation: %s", data["operation"])
		log.Printf("  Detected At: %s", data["detected_at"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Alert received!"))
	})

	log.Println("Replay alert receiver listening on :9090")
	if err := http.ListenAndServe(":9090", nil); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
