/*
Package result contains structures returned by the RPC server methods.
*/
package result

import (
	"github.com/dankorotin/countergo/pkg/util"
)

type (
	// CounterState is the full counter state as reported by the
	// getcounterstate RPC method.
	CounterState struct {
		// Address is the state identity derived from the genesis root cell.
		Address string `json:"address"`
		// Total is the current counter value.
		Total uint64 `json:"total"`
		// Executions is the number of successful mutating invocations.
		Executions uint64 `json:"executions"`
		// RootHash is the representation hash of the current root cell.
		RootHash util.Uint256 `json:"roothash"`
		// RootBits is the payload length of the current root cell.
		RootBits int `json:"rootbits"`
		// StorageVersion is the storage schema version.
		StorageVersion string `json:"storageversion"`
	}

	// Version holds the version of the server and its protocol settings.
	Version struct {
		UserAgent string   `json:"useragent"`
		Protocol  Protocol `json:"protocol"`
	}

	// Protocol mirrors the ProtocolConfiguration the server runs with.
	Protocol struct {
		InitialTotal uint64 `json:"initialtotal"`
		GasLimit     int64  `json:"gaslimit"`
	}

	// ValidateAddress is the result of the validateaddress RPC method.
	ValidateAddress struct {
		Address interface{} `json:"address"`
		IsValid bool        `json:"isvalid"`
	}
)
