package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

// step is one webhook the call platform would send, followed by a pause.
type step struct {
	payload map[string]interface{}
	pause   time.Duration
}

func say(text string) map[string]interface{} {
	return map[string]interface{}{"text": text}
}

func tool(name string, args map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "tool_call", "name": name, "arguments": args}
}

func demoScript(delay time.Duration) []step {
	short := delay / 4
	return []step{
		{say("User: I'm looking for a car rental."), delay},
		{say("Agent: I can help with that, but first I need your tail number to check the reservation."), delay},
		{say("User: It's ABC123."), short},
		{tool("register_pilot", map[string]interface{}{"tail_number": "ABC123"}), delay},
		{say("Agent: Thank you. I don't see a reservation under that tail number. what is your estimated landing time and location?"), delay},
		{say("User: Yeah, my estimated landing time is after 3 hours."), delay},
		{say("Agent: Thank you. Your reservation is confirmed. Do you need any services like fuel or car rental?"), short},
		{tool("add_service", map[string]interface{}{"service_type": "reservation", "details": "Flight Reservation"}), delay},
		{say("User: Yeah, I need help with car rental."), delay},
		{say("Agent: For car rental, what type and model would you prefer?"), delay},
		{say("User: I prefer 2025 BMW."), short},
		{tool("add_service", map[string]interface{}{"service_type": "car_rental", "details": "2025 BMW"}), delay},
		{say("Agent: Perfect. Your 2025 BMW car rental is confirmed. Do you need any other services?"), delay / 2},
		{tool("add_service", map[string]interface{}{"service_type": "refueling", "details": "30 liters of oil gas"}), delay / 2},
		{tool("add_service", map[string]interface{}{"service_type": "catering", "details": "spicy chicken sandwiches"}), delay / 2},
		{tool("add_service", map[string]interface{}{"service_type": "wine", "details": "10 year old red"}), 0},
	}
}

func sendWebhook(client *http.Client, url string, payload map[string]interface{}) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(respBody), err
}

func main() {
	baseURL := flag.String("url", "http://localhost:3001", "relay server base URL")
	delay := flag.Duration("delay", 2*time.Second, "pause between conversation turns")
	reset := flag.Bool("reset", true, "clear all orders before replaying")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}
	color.Cyan("Starting demo call simulation against %s\n", *baseURL)

	if *reset {
		if _, _, err := sendWebhook(client, *baseURL+"/api/reset", map[string]interface{}{}); err != nil {
			color.Red("Reset failed: %v", err)
			os.Exit(1)
		}
		color.Yellow("Orders cleared")
	}

	for i, s := range demoScript(*delay) {
		status, body, err := sendWebhook(client, *baseURL+"/webhook", s.payload)
		if err != nil {
			color.Red("[%02d] request failed: %v", i+1, err)
			os.Exit(1)
		}

		label := fmt.Sprint(s.payload["text"])
		if s.payload["type"] == "tool_call" {
			label = fmt.Sprintf("tool %s %v", s.payload["name"], s.payload["arguments"])
		}
		color.Green("[%02d] %d %s", i+1, status, label)
		color.White("     -> %s", body)

		time.Sleep(s.pause)
	}

	color.Cyan("\nDemo simulation complete.")
}

