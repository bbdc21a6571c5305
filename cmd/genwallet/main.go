package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/avykov/simex/pkg/wallet"
)

// genwallet prints fresh trading identities for use against the API.
func main() {
	n := flag.Int("n", 1, "number of wallets to generate")
	flag.Parse()

	wallets, err := wallet.GenerateBatch(*n)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	for _, w := range wallets {
		fmt.Printf("%s %s\n", w.Address, w.PrivateKeyHex())
	}
}
