package app

import (
	_ "embed"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// contractAddress is where the illustrative archive contract would live.
// Nothing in trustscan talks to a chain.
const contractAddress = "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"

//go:embed assets/TrustScanSecurity.sol
var contractSource string

// Contract prints the reference archive contract and its checksummed address.
func (a *App) Contract() error {
	addr := common.HexToAddress(contractAddress)
	fmt.Fprintf(a.Out, "// address: %s\n", addr.Hex())
	_, err := fmt.Fprint(a.Out, contractSource)
	return err
}
