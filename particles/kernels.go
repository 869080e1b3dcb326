package particles

import "math"

// coincidentDistSq is the squared centre distance below which two
// particles are treated as coincident.
const coincidentDistSq = 1e-12

func clearGridKernel(d *CPUDevice, i int) {
	d.grid.Clear(i)
}

func binParticlesKernel(d *CPUDevice, i int) {
	p := &d.particles[i]
	if !d.grid.Insert(d.grid.CellOf(p.Position), p.ID) {
		d.overflows.Add(1)
	}
}

// integrateKernel advances one particle with semi-implicit Euler and
// publishes the result to the snapshot buffer.
func integrateKernel(d *CPUDevice, i int) {
	p := &d.particles[i]
	dt := d.params.DeltaTime

	a := d.params.Accel
	if p.Mass > 0 {
		a = a.Add(p.Force.Scale(1 / p.Mass))
	}
	p.Velocity = p.Velocity.Add(a.Scale(dt))
	p.Position = p.Position.Add(p.Velocity.Scale(dt))
	p.Force = Vec3{}

	d.snapshot[i] = *p
}

// collideParticlesKernel resolves every overlap of particle i against
// its neighbours. It reads only the snapshot and writes only particle i.
func collideParticlesKernel(d *CPUDevice, i int) {
	self := d.snapshot[i]
	count := d.params.Count
	e := d.params.Restitution

	invSelf := inverseMass(self.Mass)
	var dPos, dVel Vec3

	d.grid.Neighbors(self.Position, func(cell int) {
		for _, j := range d.grid.Members(cell) {
			if j == self.ID || j >= count {
				continue
			}
			other := &d.snapshot[j]

			delta := self.Position.Sub(other.Position)
			reach := self.Radius + other.Radius
			distSq := delta.LenSq()
			if distSq >= reach*reach {
				continue
			}

			var n Vec3
			var dist float32
			if distSq < coincidentDistSq {
				// Opposite normals for the two sides of the pair.
				if self.ID > other.ID {
					n = Vec3{0, 0, 1}
				} else {
					n = Vec3{0, 0, -1}
				}
			} else {
				dist = float32(math.Sqrt(float64(distSq)))
				n = delta.Scale(1 / dist)
			}

			invOther := inverseMass(other.Mass)
			share := massShare(invSelf, invOther)
			dPos = dPos.Add(n.Scale((reach - dist) * share))

			vn := self.Velocity.Sub(other.Velocity).Dot(n)
			if vn < 0 && invSelf+invOther > 0 {
				j := -(1 + e) * vn / (invSelf + invOther)
				dVel = dVel.Add(n.Scale(j * invSelf))
			}
		}
	})

	p := &d.particles[i]
	p.Position = self.Position.Add(dPos)
	p.Velocity = self.Velocity.Add(dVel)
}

// collideTerrainKernel keeps particle i above the height field and
// inside the world box.
func collideTerrainKernel(d *CPUDevice, i int) {
	p := &d.particles[i]
	e := d.params.Restitution
	mu := d.params.Friction

	if s := d.surface; s != nil && len(s.Heights) > 0 {
		x, y := p.Position[0], p.Position[1]
		h := s.Sample(x, y)
		if p.Position[2]-p.Radius < h {
			gx, gy := s.Gradient(x, y)
			n := Vec3{-gx, -gy, 1}
			n = n.Scale(1 / n.Len())

			p.Position[2] = h + p.Radius

			vn := p.Velocity.Dot(n)
			if vn < 0 {
				dvn := -(1 + e) * vn
				p.Velocity = p.Velocity.Add(n.Scale(dvn))

				vt := p.Velocity.Sub(n.Scale(p.Velocity.Dot(n)))
				if speed := vt.Len(); speed > 0 {
					cut := min(speed, mu*dvn)
					p.Velocity = p.Velocity.Sub(vt.Scale(cut / speed))
				}
			}
		}
	}

	bounds := d.params.WorldBounds
	for k := 0; k < 3; k++ {
		lo := -bounds[k] + p.Radius
		hi := bounds[k] - p.Radius
		if lo > hi {
			lo, hi = 0, 0
		}
		if p.Position[k] < lo {
			p.Position[k] = lo
			if p.Velocity[k] < 0 {
				p.Velocity[k] = -p.Velocity[k] * e
			}
		} else if p.Position[k] > hi {
			p.Position[k] = hi
			if p.Velocity[k] > 0 {
				p.Velocity[k] = -p.Velocity[k] * e
			}
		}
	}
}

func inverseMass(m float32) float32 {
	if m <= 0 {
		return 0
	}
	return 1 / m
}

// massShare is the fraction of the penetration self moves: m_other/(m_self+m_other).
func massShare(invSelf, invOther float32) float32 {
	if invSelf+invOther == 0 {
		return 0.5
	}
	return invSelf / (invSelf + invOther)
}
