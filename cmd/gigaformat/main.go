// Gigaformat is a car listing formatting service backed by the Sber
// GigaChat API.
//
// It accepts raw seller text, sends it to GigaChat with a car-expert
// prompt, and returns a structured listing (brand, model, VIN, mileage,
// year, price, contact). A token quota tracker enforces the per-request,
// daily, and monthly token limits of the GigaChat account so the service
// never overruns its budget.
//
// Usage:
//
//	# Start the HTTP API with default configuration
//	gigaformat run
//
//	# Start with a custom configuration file
//	gigaformat run --config /etc/gigaformat/config.yaml
//
//	# Format a single listing from stdin
//	echo "Продам ладу весту 2021" | gigaformat fmt
//
//	# Show current quota usage
//	gigaformat quota
//
//	# Validate a configuration file
//	gigaformat validate --config config.yaml
package main

func main() {
	Execute()
}
