// Command heapctl replays allocation traces against heapkit heaps and
// reports utilisation, growth and fragmentation.
package main

func main() {
	execute()
}
