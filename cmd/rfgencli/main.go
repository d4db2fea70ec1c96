package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/mbobakov/grpc-consul-resolver"
	"github.com/namsral/flag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/balancer/roundrobin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	healthURI = flag.String("healthURI", "localhost:6666", "rfgend grpc health URI, consul://host/service accepted")
	service   = flag.String("service", "grpc.health.v1.rfgend", "health service name")
	apiURL    = flag.String("apiURL", "http://localhost:9201", "rfgend HTTP API URL")
	query     = flag.String("query", "render", "render, validate or history")
	key       = flag.String("key", "", "history key, lists the keys if empty")
)

func main() {
	flag.Parse()

	conn, err := grpc.Dial(*healthURI,
		grpc.WithInsecure(),
		grpc.WithBalancerName(roundrobin.Name), //nolint:staticcheck
	)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rep, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		log.Fatal(err)
	}
	if rep.Status != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("%s is %s", *service, rep.Status)
	}

	var path string
	switch *query {
	case "render":
		path = "/api/render"
	case "validate":
		path = "/api/validate"
	case "history":
		path = "/api/history"
		if *key != "" {
			path += "/" + *key
		}
	default:
		log.Fatalf("unknown query %s", *query)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(*apiURL + path)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("%s: %s", resp.Status, b)
	}

	if *query != "render" {
		os.Stdout.Write(b)
		return
	}

	var res struct {
		Source  string `json:"source"`
		Header  string `json:"header"`
		Digest  string `json:"digest"`
		Changed bool   `json:"changed"`
	}
	if err := json.Unmarshal(b, &res); err != nil {
		log.Fatal(err)
	}
	log.Println("render", res.Digest, "changed", res.Changed)
	fmt.Print(res.Header)
	fmt.Print(res.Source)
}
