// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

// ClockReplacer implements the clock replacement policy. A frame enters the
// candidate ring with its reference bit clear; a later Unpin of the same
// frame sets the bit, which buys the frame one extra sweep of the hand.
type ClockReplacer struct {
	cList     *circularList
	clockHand **node
}

// Victim removes the victim frame as defined by the replacement policy
func (c *ClockReplacer) Victim() *FrameID {
	if c.cList.size == 0 {
		return nil
	}

	var victimFrameID *FrameID
	currentNode := *c.clockHand
	for {
		if currentNode.value {
			currentNode.value = false
			c.clockHand = &currentNode.next
			currentNode = *c.clockHand
		} else {
			frameID := currentNode.key
			victimFrameID = &frameID

			c.clockHand = &currentNode.next

			c.cList.remove(currentNode.key)
			return victimFrameID
		}
	}
}

// Unpin makes a frame evictable. Re-unpinning a frame already in the ring
// refreshes its reference bit (second chance).
func (c *ClockReplacer) Unpin(id FrameID) {
	if node := c.cList.find(id); node != nil {
		node.value = true
		return
	}

	c.cList.insert(id, false)
	if c.cList.size == 1 {
		c.clockHand = &c.cList.head
	}
}

// Pin takes a frame out of the candidate ring, indicating that it should
// not be victimized until it is unpinned
func (c *ClockReplacer) Pin(id FrameID) {
	node := c.cList.find(id)
	if node == nil {
		return
	}

	if (*c.clockHand) == node {
		c.clockHand = &(*c.clockHand).next
	}
	c.cList.remove(id)
}

// Size returns the size of the clock
func (c *ClockReplacer) Size() uint32 {
	return c.cList.size
}

func (c *ClockReplacer) isContain(id FrameID) bool {
	return c.cList.hasKey(id)
}

// PrintList prints the internal ring state for debugging
func (c *ClockReplacer) PrintList() {
	c.cList.print()
}

// NewClockReplacer instantiates a new clock replacer
func NewClockReplacer(poolSize uint32) *ClockReplacer {
	cList := newCircularList(poolSize)
	return &ClockReplacer{cList, &cList.head}
}
